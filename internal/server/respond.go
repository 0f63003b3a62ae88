package server

import (
	"errors"
	"io"
	"net/http"

	"matchcore/internal/domain"
	"matchcore/internal/failure"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var notFound = []error{
	domain.ErrPlayerNotFound,
	domain.ErrMatchNotFound,
	domain.ErrTicketNotFound,
	domain.ErrServerNotFound,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Transient causes are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range notFound {
		if errors.Is(err, target) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: target.Error(), Kind: "not_found"})
			return
		}
	}

	kind := failure.Classify(err)
	switch kind {
	case failure.KindValidation:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: kind.String()})
	case failure.KindBusiness:
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: kind.String()})
	case failure.KindDuplicate:
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, retry later", Kind: kind.String()})
	}
}

// decode reads a JSON body into v. Any failure is a validation error.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return failure.Validation("unreadable body")
	}
	if len(body) == 0 {
		return failure.Validation("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return failure.Validation("malformed JSON body")
	}
	return nil
}
