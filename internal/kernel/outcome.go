package kernel

import (
	"net/http"
	"strings"

	"github.com/G1D0/httpkernel/internal/response"
	"github.com/G1D0/httpkernel/internal/router"
)

const msgNotFound = "Resource not found."

type errorBody struct {
	Error string `json:"error"`
}

// notFound is the 404 envelope.
func notFound() *response.Envelope {
	return response.JSON(http.StatusNotFound, nil, errorBody{Error: msgNotFound})
}

// methodNotAllowed is the 405 envelope. allowed is joined in the order the
// router produced it.
func methodNotAllowed(allowed []string) *response.Envelope {
	joined := strings.Join(allowed, ", ")
	h := response.NewHeaders()
	h.Set("Allow", joined)
	return response.JSON(http.StatusMethodNotAllowed, h, errorBody{
		Error: "Supported methods are " + joined + ".",
	})
}

// classify turns a router match into either a ready envelope or the Found
// route to run. Unknown match types are answered like NotFound so that
// dispatcher internals never reach clients.
func classify(m router.Match) (env *response.Envelope, found *router.Found, outcome string) {
	switch v := m.(type) {
	case router.Found:
		return nil, &v, router.OutcomeFound.String()
	case *router.Found:
		if v == nil {
			return notFound(), nil, "unknown"
		}
		return nil, v, router.OutcomeFound.String()
	case router.MethodNotAllowed:
		return methodNotAllowed(v.Allowed), nil, router.OutcomeMethodNotAllowed.String()
	case router.NotFound:
		return notFound(), nil, router.OutcomeNotFound.String()
	default:
		return notFound(), nil, "unknown"
	}
}
