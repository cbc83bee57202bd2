package domain

import (
	"errors"
	"fmt"
)

// ErrBadParameter marks request validation failures. Handlers map anything
// wrapping it to HTTP 400; every other error is a 500.
var ErrBadParameter = errors.New("bad parameter")

// ErrEmptyRegion is returned when a lat/lon range selects no grid cells.
var ErrEmptyRegion = fmt.Errorf("%w: no data found in the given lat/lon range", ErrBadParameter)
