package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"sites-spectral/internal/audit"
	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
)

const (
	codeValidation   = "ValidationFailed"
	codeUnauthorized = "Unauthenticated"
	codeForbidden    = "InsufficientPermissions"
	codeNotFound     = "NotFound"
	codeConflict     = "Conflict"
	codeDependency   = "DependencyBlocked"
	codeRateLimited  = "RateLimited"
	codeInternal     = "Internal"
)

// errBadRequest marks request bodies or parameters that cannot be decoded.
var errBadRequest = errors.New("bad request")

// envelope is the body of every error response.
type envelope struct {
	Error        string                       `json:"error"`
	Message      string                       `json:"message,omitempty"`
	Details      []string                     `json:"details,omitempty"`
	Conflicts    []masterdata.Conflict        `json:"conflicts,omitempty"`
	Suggestions  map[string]string            `json:"suggestions,omitempty"`
	Dependencies *masterdata.DependencyReport `json:"dependencies,omitempty"`
	RetryAfter   int                          `json:"retry_after,omitempty"`
	CurrentCount int                          `json:"current_count,omitempty"`
	Limit        int                          `json:"limit,omitempty"`
	RequestID    string                       `json:"request_id,omitempty"`
}

// classify maps an error onto its status and envelope. It is the only place
// that decides status codes for failures.
func classify(err error) (int, envelope) {
	var (
		verr  *masterdata.ValidationError
		cerr  *masterdata.ConflictError
		derr  *masterdata.DependencyError
		rlerr *audit.RateLimitError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, envelope{Error: codeValidation, Message: "validation failed", Details: verr.Details}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, envelope{Error: codeValidation, Message: err.Error()}
	case errors.As(err, &cerr):
		return http.StatusConflict, envelope{
			Error:       codeConflict,
			Message:     cerr.Error(),
			Conflicts:   cerr.Conflicts,
			Suggestions: cerr.Suggestions,
		}
	case errors.As(err, &derr):
		report := derr.Report
		return http.StatusConflict, envelope{
			Error:        codeDependency,
			Message:      "resource has dependencies; repeat with force_cascade=true to delete them",
			Details:      report.CascadePreview,
			Dependencies: &report,
		}
	case errors.As(err, &rlerr):
		return http.StatusTooManyRequests, envelope{
			Error:        codeRateLimited,
			Message:      rlerr.Error(),
			RetryAfter:   rlerr.RetryAfterSeconds,
			CurrentCount: rlerr.CurrentCount,
			Limit:        rlerr.Limit,
		}
	case errors.Is(err, masterdata.ErrNotFound):
		return http.StatusNotFound, envelope{Error: codeNotFound, Message: err.Error()}
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, envelope{Error: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, envelope{Error: codeForbidden, Message: err.Error()}
	default:
		return http.StatusInternalServerError, envelope{Error: codeInternal, Message: "internal server error"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	body.RequestID = RequestIDFromContext(r.Context())
	if status == http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"request_id": body.RequestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	writeEnvelope(w, status, body)
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
