package auth

import (
	masterdata "sites-spectral/internal/masterdata/domain"
)

// Operation is the kind of access requested on a resource.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Authorize evaluates the role matrix. Every role reads every station;
// readonly never writes; admin writes everywhere; station users write only
// inside their own station and only the operations their role allows on
// that kind.
func Authorize(claims *Claims, op Operation, kind masterdata.ResourceKind, owningStation string) bool {
	if claims == nil {
		return false
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return false
	}
	if op == OpRead {
		return true
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleStation:
		if claims.StationNormalizedName == "" || claims.StationNormalizedName != owningStation {
			return false
		}
		return stationRoleMay(kind, op)
	default:
		return false
	}
}

func stationRoleMay(kind masterdata.ResourceKind, op Operation) bool {
	switch kind {
	case masterdata.KindStation, masterdata.KindPlatform:
		return op == OpUpdate
	case masterdata.KindInstrument, masterdata.KindROI:
		return op == OpCreate || op == OpUpdate || op == OpDelete
	default:
		return false
	}
}

// AccessLevel maps claims onto the field access level they may write at.
func AccessLevel(claims *Claims) masterdata.Access {
	if claims == nil {
		return masterdata.AccessNone
	}
	switch Role(claims.Role) {
	case RoleAdmin:
		return masterdata.AccessAdmin
	case RoleStation:
		return masterdata.AccessStation
	default:
		return masterdata.AccessNone
	}
}

// FieldSet lists the fields a caller may write on a kind.
type FieldSet struct {
	CommonFields    []string `json:"common_fields"`
	AdminOnlyFields []string `json:"admin_only_fields"`
}

// EditableFields returns the writable fields of kind for claims. Admin-only
// fields are listed for admins only; readonly callers get empty lists.
func EditableFields(claims *Claims, kind masterdata.ResourceKind) FieldSet {
	set := FieldSet{CommonFields: []string{}, AdminOnlyFields: []string{}}
	schema, ok := masterdata.SchemaFor(kind)
	if !ok {
		return set
	}
	level := AccessLevel(claims)
	if level >= masterdata.AccessStation {
		set.CommonFields = append(set.CommonFields, schema.FieldNames(masterdata.AccessStation)...)
	}
	if level >= masterdata.AccessAdmin {
		set.AdminOnlyFields = append(set.AdminOnlyFields, schema.FieldNames(masterdata.AccessAdmin)...)
	}
	return set
}
