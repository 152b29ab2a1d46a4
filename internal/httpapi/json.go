package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// decodeJSON decodes the request body into v. An empty body is treated as
// a no-op (leaves v's zero value), matching endpoints where the body is
// optional (e.g. reset with no modelId).
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errs ...string) {
	writeJSON(w, status, map[string]interface{}{
		"status": "error",
		"errors": errs,
	})
}
