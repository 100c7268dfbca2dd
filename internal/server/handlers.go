package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stepwise/internal/curriculum"
	"stepwise/internal/progress"
)

const (
	errBadRequest       = "BadRequest"
	errNotFound         = "NotFound"
	errMethodNotAllowed = "MethodNotAllowed"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       s.settings.Version,
		UptimeSeconds: int64(s.uptime().Seconds()),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	opts, err := optionsFromQuery(r, s.reporter.Options())
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, err.Error())
		return
	}

	report, err := s.reporter.ComputeWith(r.Context(), opts)
	if err != nil {
		category := curriculum.CategoryOf(err)
		s.logger.Warn("report failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("category", string(category)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, string(category), curriculum.MessageOf(err))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, errNotFound, "no route for "+r.URL.Path)
}

// optionsFromQuery applies ?mode= and ?forcePass= on top of the defaults.
func optionsFromQuery(r *http.Request, defaults progress.Options) (progress.Options, error) {
	opts := defaults
	q := r.URL.Query()

	if raw := q.Get("mode"); raw != "" {
		mode, err := progress.ParseMode(raw)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}

	if raw, ok := q["forcePass"]; ok {
		value := strings.TrimSpace(raw[0])
		if value == "" {
			opts.ForcePass = true
		} else {
			force, err := strconv.ParseBool(value)
			if err != nil {
				return opts, &queryError{param: "forcePass", value: value}
			}
			opts.ForcePass = force
		}
	}
	return opts, nil
}

type queryError struct {
	param string
	value string
}

func (e *queryError) Error() string {
	return "invalid " + e.param + " value " + strconv.Quote(e.value) + " (want true or false)"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, category, message string) {
	writeJSON(w, status, errorResponse{Error: category, Message: message})
}
