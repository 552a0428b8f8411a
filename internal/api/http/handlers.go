package apihttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"sites-spectral/internal/audit"
	"sites-spectral/internal/auth"
	"sites-spectral/internal/export"
	"sites-spectral/internal/masterdata/application"
	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/observability/metrics"
)

const maxBodyBytes = 4 << 20

// apiFunc handles a JSON request and returns the status and body to write.
type apiFunc func(r *http.Request) (int, any, error)

func (s *Server) serve(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, status, body)
	}
}

// adminServe is serve with the admin protocol around mutations: the rate
// limit is checked first and every attempted mutation is audited with its
// outcome. Audit failures never change the response.
func (s *Server) adminServe(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isRead(r.Method) {
			s.serve(fn)(w, r)
			return
		}
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			s.writeError(w, r, auth.ErrUnauthorized)
			return
		}
		if err := s.limiter.Enforce(r.Context(), claims.Username, r.Method); err != nil {
			s.log.WithFields(logrus.Fields{
				"admin_user": claims.Username,
				"method":     r.Method,
				"path":       r.URL.Path,
			}).Warn("admin rate limit exceeded")
			s.writeError(w, r, err)
			return
		}

		start := time.Now()
		status, body, err := fn(r)
		elapsed := time.Since(start)
		if err != nil {
			status, _ = classify(err)
		}
		s.recorder.Record(r.Context(), s.auditEntry(r, claims, status, elapsed, body, err))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, status, body)
	}
}

// resourceServe runs admin callers through adminServe on every route, so the
// plain /api routes cannot be used to skip the rate limit or the audit log.
func (s *Server) resourceServe(fn apiFunc) http.HandlerFunc {
	plain, admin := s.serve(fn), s.adminServe(fn)
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.RoleFromContext(r.Context()) == auth.RoleAdmin {
			admin(w, r)
			return
		}
		plain(w, r)
	}
}

func (s *Server) auditEntry(r *http.Request, claims *auth.Claims, status int, elapsed time.Duration, body any, err error) audit.Entry {
	vars := mux.Vars(r)
	kind, _ := masterdata.ParseResourceKind(vars["kind"])
	entry := audit.Entry{
		AdminUser:    claims.Username,
		Role:         claims.Role,
		Action:       audit.ActionForMethod(r.Method),
		ResourceType: string(kind),
		ResourceID:   vars["id"],
	}
	var ref *masterdata.Ref
	switch v := body.(type) {
	case masterdata.Resource:
		rf := v.Ref()
		ref = &rf
	case *application.DeleteResult:
		ref = &v.Deleted
	}
	if ref != nil {
		entry.ResourceID = strconv.FormatInt(ref.ID, 10)
		entry.Station = ref.StationNormalizedName
	}

	verb := strings.TrimPrefix(entry.Action, "admin_")
	target := vars["id"]
	if ref != nil {
		target = ref.Name
	}
	entry.Description = strings.TrimSpace(fmt.Sprintf("%s %s %s", verb, kind, target))

	metadata := map[string]any{"status": status, "duration_ms": elapsed.Milliseconds()}
	if q := r.URL.Query(); len(q) > 0 {
		metadata["query"] = q
	}
	if err != nil {
		_, env := classify(err)
		metadata["error"] = env.Error
	}
	if result, ok := body.(*application.DeleteResult); ok {
		metadata["dependencies_deleted"] = result.DependenciesDeleted
	}
	entry.Metadata = audit.Describe(metadata)
	return audit.FromRequest(r, entry)
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func kindOf(r *http.Request) (masterdata.ResourceKind, error) {
	kind, ok := masterdata.ParseResourceKind(mux.Vars(r)["kind"])
	if !ok {
		return "", fmt.Errorf("%w: unknown resource kind %q", errBadRequest, mux.Vars(r)["kind"])
	}
	return kind, nil
}

func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func boolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// timeQuery accepts RFC 3339 timestamps or plain dates (UTC midnight).
func timeQuery(r *http.Request, name string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp or YYYY-MM-DD date", errBadRequest, name)
}

func (s *Server) handleList(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	q := r.URL.Query()
	since, err := timeQuery(r, "updated_since")
	if err != nil {
		return 0, nil, err
	}
	out, err := s.catalog.List(r.Context(), kind, application.ListQuery{
		Station:      q.Get("station"),
		Platform:     q.Get("platform"),
		Instrument:   q.Get("instrument"),
		Summary:      boolQuery(r, "summary"),
		Type:         q.Get("type"),
		Status:       q.Get("status"),
		Search:       q.Get("q"),
		UpdatedSince: since,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, out, nil
}

func (s *Server) handleGet(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	resource, err := s.catalog.Get(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, resource, nil
}

func (s *Server) handleCreate(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	input := map[string]any{}
	if err := decodeBody(r, &input); err != nil {
		return 0, nil, err
	}
	resource, err := s.catalog.Create(r.Context(), kind, input)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, resource, nil
}

func (s *Server) handleUpdate(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	input := map[string]any{}
	if err := decodeBody(r, &input); err != nil {
		return 0, nil, err
	}
	resource, err := s.catalog.Update(r.Context(), kind, mux.Vars(r)["id"], input)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, resource, nil
}

func (s *Server) handleDelete(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	result, err := s.catalog.Delete(r.Context(), kind, mux.Vars(r)["id"], application.DeleteOptions{
		ForceCascade: boolQuery(r, "force_cascade"),
		Backup:       boolQuery(r, "backup"),
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, result, nil
}

func (s *Server) handleDependencies(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	report, err := s.catalog.Analyze(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, report, nil
}

func (s *Server) handleTree(r *http.Request) (int, any, error) {
	tree, err := s.catalog.StationTree(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, tree, nil
}

func (s *Server) handleFields(r *http.Request) (int, any, error) {
	kind, err := kindOf(r)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, auth.EditableFields(auth.ClaimsFromContext(r.Context()), kind), nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	Username              string `json:"username"`
	Role                  string `json:"role"`
	StationAcronym        string `json:"station_acronym,omitempty"`
	StationNormalizedName string `json:"station_normalized_name,omitempty"`
}

func (s *Server) handleLogin(r *http.Request) (int, any, error) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return 0, nil, &masterdata.ValidationError{Details: []string{"username and password are required"}}
	}
	result, err := s.login.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.IncLogin(metrics.ResultError)
		return 0, nil, err
	}
	metrics.IncLogin(metrics.ResultSuccess)
	return http.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user": userView{
			Username:              result.User.Username,
			Role:                  string(result.User.Role),
			StationAcronym:        result.User.StationAcronym,
			StationNormalizedName: result.User.StationNormalizedName,
		},
	}, nil
}

func (s *Server) handleVerify(r *http.Request) (int, any, error) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return 0, nil, auth.ErrUnauthorized
	}
	return http.StatusOK, map[string]any{
		"valid": true,
		"user": userView{
			Username:              claims.Username,
			Role:                  claims.Role,
			StationAcronym:        claims.StationAcronym,
			StationNormalizedName: claims.StationNormalizedName,
		},
	}, nil
}

type importRequest struct {
	DryRun bool `json:"dry_run"`
	application.ImportDocument
}

func (s *Server) handleImport(r *http.Request) (int, any, error) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	report, err := s.catalog.Import(r.Context(), mux.Vars(r)["station"], req.ImportDocument, req.DryRun || boolQuery(r, "dry_run"))
	if err != nil {
		return 0, nil, err
	}
	status := http.StatusOK
	if !report.DryRun && report.Created() > 0 {
		status = http.StatusCreated
	}
	return status, report, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	tree, err := s.catalog.StationTree(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc := export.NewDocument(*tree, s.now(), auth.UsernameFromContext(r.Context()))
	data, err := export.Render(format, doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
