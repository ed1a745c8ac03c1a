package panel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hassviz/hassviz/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to a JSON error response. VizError codes pick
// the status; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var vizErr *schema.VizError
	if errors.As(err, &vizErr) {
		body := map[string]any{"error": vizErr.Message, "code": vizErr.Code}
		if vizErr.AutomationID != "" {
			body["automation_id"] = vizErr.AutomationID
		}
		if len(vizErr.Details) > 0 {
			body["details"] = vizErr.Details
		}
		writeJSON(w, statusForCode(vizErr.Code), body)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// writeBadRequest writes a 400 with a plain message.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "code": schema.ErrCodeValidation})
}

func statusForCode(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation, schema.ErrCodeMalformed, schema.ErrCodeDepthExceeded:
		return http.StatusBadRequest
	case schema.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryFloat extracts a float query param with a default value.
func queryFloat(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
