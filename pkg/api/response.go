package api

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrymomot/linkguard/pkg/logger"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

type jsonResponse struct {
	status  int
	headers map[string]string
	body    any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, v := range j.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON renders v with the given status.
func JSON(status int, v any) Response {
	return jsonResponse{status: status, body: v}
}

// JSONWithHeaders is JSON plus extra response headers.
func JSONWithHeaders(status int, v any, headers map[string]string) Response {
	return jsonResponse{status: status, body: v, headers: headers}
}

// errorBody is the shape of non-validation errors.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func errorResponse(status int, code, message string) Response {
	return JSON(status, errorBody{Error: code, Message: message})
}

// unavailable is returned when the nonce store cannot answer.
func unavailable() Response {
	return JSONWithHeaders(http.StatusServiceUnavailable,
		errorBody{Error: "unavailable"},
		map[string]string{"Retry-After": "1"},
	)
}

// handlerFunc returns a Response instead of writing directly.
type handlerFunc func(r *http.Request) Response

func (s *server) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := fn(r)
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := resp.Render(w, r); err != nil {
			s.log.WarnContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}
