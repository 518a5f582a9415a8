package middleware

import "net/http"

// ResponseCapture wraps http.ResponseWriter to capture the status code
// and bytes written, which http.ResponseWriter does not expose.
type ResponseCapture struct {
	http.ResponseWriter
	StatusCode  int
	Written     int64
	wroteHeader bool
}

// NewResponseCapture wraps a ResponseWriter.
func NewResponseCapture(w http.ResponseWriter) *ResponseCapture {
	return &ResponseCapture{
		ResponseWriter: w,
		StatusCode:     http.StatusOK, // default if WriteHeader is never called
	}
}

// WriteHeader captures the first status code then delegates.
func (rc *ResponseCapture) WriteHeader(code int) {
	if !rc.wroteHeader {
		rc.StatusCode = code
		rc.wroteHeader = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

// Write counts bytes written then delegates.
func (rc *ResponseCapture) Write(b []byte) (int, error) {
	rc.wroteHeader = true
	n, err := rc.ResponseWriter.Write(b)
	rc.Written += int64(n)
	return n, err
}

// Flush forwards to the underlying writer when it supports http.Flusher.
func (rc *ResponseCapture) Flush() {
	if f, ok := rc.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
