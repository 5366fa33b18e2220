// Package httputil writes the JSON and HTML responses served by the demo.
package httputil

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Run state changes between requests, so nothing is cacheable.
func send(w http.ResponseWriter, status int, contentType string, body func(io.Writer) error) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := body(w); err != nil {
		log.Printf("[HTTP] failed to write %d response: %v", status, err)
	}
}

// JSON encodes v as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	send(w, status, contentTypeJSON, func(out io.Writer) error {
		return json.NewEncoder(out).Encode(v)
	})
}

// OK encodes v with a 200 status.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// HTML writes a rendered page with a 200 status.
func HTML(w http.ResponseWriter, page []byte) {
	send(w, http.StatusOK, contentTypeHTML, func(out io.Writer) error {
		_, err := out.Write(page)
		return err
	})
}

// Error writes msg as an ErrorBody.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// MethodNotAllowed writes a 405 listing the methods the route accepts.
func MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
