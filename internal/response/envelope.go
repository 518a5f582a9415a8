package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidStatus is returned by Send when the envelope carries a status
// outside the HTTP range.
var ErrInvalidStatus = errors.New("invalid HTTP status")

// Envelope is an outgoing response before transport serialization.
//
// An envelope built from raw bytes sends them as-is. An envelope built from
// a payload serializes it as JSON when Send is called, not before.
type Envelope struct {
	status  int
	headers *Headers
	body    []byte
	payload any
	encode  bool
}

// New creates an envelope with a raw body. headers may be nil.
func New(status int, headers *Headers, body []byte) *Envelope {
	return &Envelope{
		status:  status,
		headers: headers.Clone(),
		body:    body,
	}
}

// JSON creates an envelope whose body is payload encoded as JSON at send time.
func JSON(status int, headers *Headers, payload any) *Envelope {
	h := headers.Clone()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	return &Envelope{
		status:  status,
		headers: h,
		payload: payload,
		encode:  true,
	}
}

// Text creates a plain text envelope.
func Text(status int, body string) *Envelope {
	h := NewHeaders()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Envelope{status: status, headers: h, body: []byte(body)}
}

// Status returns the status code.
func (e *Envelope) Status() int { return e.status }

// Headers returns the envelope's header set. Changes are visible to Send.
func (e *Envelope) Headers() *Headers { return e.headers }

// Body materializes the body.
func (e *Envelope) Body() ([]byte, error) {
	if !e.encode {
		return e.body, nil
	}
	b, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("encode response body: %w", err)
	}
	return b, nil
}

// Send produces the transport-ready response. The status is copied verbatim,
// headers keep their insertion order and the body is fully materialized.
func (e *Envelope) Send() (*Response, error) {
	if e.status < 100 || e.status > 599 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, e.status)
	}
	body, err := e.Body()
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: e.status,
		Header:     e.headers.Clone(),
		Body:       body,
	}, nil
}

// Response is a sent envelope: everything a transport needs to write it out.
type Response struct {
	StatusCode int
	Header     *Headers
	Body       []byte
}

// Write copies the response to w: headers in insertion order, then the
// status line, then the whole body.
func (r *Response) Write(w http.ResponseWriter) error {
	dst := w.Header()
	for _, k := range r.Header.Keys() {
		for _, v := range r.Header.Values(k) {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
