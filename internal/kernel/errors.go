package kernel

import (
	"errors"
	"fmt"
)

// ErrTypeContract marks a controller that returned something other than a
// *response.Envelope.
var ErrTypeContract = errors.New("controller result must be a *response.Envelope")

// TypeContractError describes which controller broke the response contract
// and what it returned instead.
type TypeContractError struct {
	Controller any
	Got        any
}

func (e *TypeContractError) Error() string {
	return fmt.Sprintf("controller %v returned %T: %v", e.Controller, e.Got, ErrTypeContract)
}

// Is makes errors.Is(err, ErrTypeContract) hold.
func (e *TypeContractError) Is(target error) bool {
	return target == ErrTypeContract
}
