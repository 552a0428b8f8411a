package auth

import (
	"testing"

	masterdata "sites-spectral/internal/masterdata/domain"
)

func TestAuthorizeMatrix(t *testing.T) {
	admin := &Claims{Username: "root", Role: "admin"}
	readonly := &Claims{Username: "guest", Role: "readonly"}
	station := &Claims{Username: "svb", Role: "station", StationNormalizedName: "svartberget"}

	kinds := []masterdata.ResourceKind{masterdata.KindStation, masterdata.KindPlatform, masterdata.KindInstrument, masterdata.KindROI}
	for _, kind := range kinds {
		for _, scope := range []string{"svartberget", "abisko"} {
			if !Authorize(admin, OpRead, kind, scope) || !Authorize(readonly, OpRead, kind, scope) || !Authorize(station, OpRead, kind, scope) {
				t.Fatalf("read denied on %s/%s", kind, scope)
			}
			for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
				if !Authorize(admin, op, kind, scope) {
					t.Fatalf("admin denied %s on %s", op, kind)
				}
				if Authorize(readonly, op, kind, scope) {
					t.Fatalf("readonly allowed %s on %s", op, kind)
				}
			}
			if Authorize(station, OpUpdate, kind, "abisko") {
				t.Fatalf("station user allowed to write another station's %s", kind)
			}
		}
		if !Authorize(station, OpUpdate, kind, "svartberget") {
			t.Fatalf("station user denied update on own %s", kind)
		}
	}

	// Inside its own station the station role writes, but only within the
	// hierarchy below platforms. Stations and platforms define the site layout
	// and are created or removed by admins; a station user may only edit their
	// operational fields.
	cases := []struct {
		kind masterdata.ResourceKind
		op   Operation
		want bool
	}{
		{masterdata.KindStation, OpCreate, false},
		{masterdata.KindStation, OpUpdate, true},
		{masterdata.KindStation, OpDelete, false},
		{masterdata.KindPlatform, OpCreate, false},
		{masterdata.KindPlatform, OpUpdate, true},
		{masterdata.KindPlatform, OpDelete, false},
		{masterdata.KindInstrument, OpCreate, true},
		{masterdata.KindInstrument, OpUpdate, true},
		{masterdata.KindInstrument, OpDelete, true},
		{masterdata.KindROI, OpCreate, true},
		{masterdata.KindROI, OpUpdate, true},
		{masterdata.KindROI, OpDelete, true},
	}
	for _, tc := range cases {
		if got := Authorize(station, tc.op, tc.kind, "svartberget"); got != tc.want {
			t.Fatalf("station %s %s in own scope = %v, want %v", tc.op, tc.kind, got, tc.want)
		}
		if Authorize(station, tc.op, tc.kind, "abisko") {
			t.Fatalf("station %s %s allowed in foreign scope", tc.op, tc.kind)
		}
	}

	if Authorize(nil, OpRead, masterdata.KindStation, "") {
		t.Fatalf("nil claims allowed")
	}
	if Authorize(&Claims{Username: "x", Role: "station"}, OpUpdate, masterdata.KindPlatform, "") {
		t.Fatalf("station user without scope allowed")
	}
}

func TestEditableFields(t *testing.T) {
	station := EditableFields(&Claims{Role: "station"}, masterdata.KindPlatform)
	if len(station.AdminOnlyFields) != 0 {
		t.Fatalf("station user sees admin fields %v", station.AdminOnlyFields)
	}
	if !containsField(station.CommonFields, "display_name") || containsField(station.CommonFields, "location_code") {
		t.Fatalf("unexpected common fields %v", station.CommonFields)
	}

	admin := EditableFields(&Claims{Role: "admin"}, masterdata.KindPlatform)
	if !containsField(admin.AdminOnlyFields, "location_code") || !containsField(admin.AdminOnlyFields, "normalized_name") {
		t.Fatalf("unexpected admin fields %v", admin.AdminOnlyFields)
	}

	readonly := EditableFields(&Claims{Role: "readonly"}, masterdata.KindPlatform)
	if len(readonly.CommonFields) != 0 || len(readonly.AdminOnlyFields) != 0 {
		t.Fatalf("readonly user has editable fields %+v", readonly)
	}
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func TestRoleRanks(t *testing.T) {
	order := []Role{RoleReadonly, RoleStation, RoleAdmin}
	for i, role := range order {
		for j, required := range order {
			if got := RoleAtLeast(role, required); got != (i >= j) {
				t.Fatalf("RoleAtLeast(%s, %s) = %v", role, required, got)
			}
		}
	}
	if RoleAtLeast("superuser", RoleReadonly) || RoleAtLeast("", "") {
		t.Fatalf("unknown role satisfied a requirement")
	}
	if _, ok := NormalizeRole("Admin"); ok {
		t.Fatalf("role names are case sensitive")
	}
}
