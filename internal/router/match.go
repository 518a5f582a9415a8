package router

import "github.com/G1D0/httpkernel/internal/middleware"

// Outcome is the dispatcher's result tag. The values match the classic
// dispatcher codes: 0 not found, 1 found, 2 method not allowed.
type Outcome int

const (
	OutcomeNotFound         Outcome = 0
	OutcomeFound            Outcome = 1
	OutcomeMethodNotAllowed Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFound:
		return "found"
	case OutcomeMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "unknown"
	}
}

// Match is the result of Dispatch. It is one of NotFound, MethodNotAllowed
// or Found. A Router may return other implementations; callers must treat
// them as not found.
type Match interface {
	Outcome() Outcome
}

// NotFound means no route matches the path.
type NotFound struct{}

func (NotFound) Outcome() Outcome { return OutcomeNotFound }

// MethodNotAllowed means the path matches but not with the request method.
// Allowed lists the methods that would match, in declaration order.
type MethodNotAllowed struct {
	Allowed []string
}

func (MethodNotAllowed) Outcome() Outcome { return OutcomeMethodNotAllowed }

// Found carries everything needed to run the matched route.
type Found struct {
	Method     string
	Pattern    string
	Controller any
	Middleware []middleware.Middleware
	Params     map[string]string
}

func (Found) Outcome() Outcome { return OutcomeFound }
