package scoring

import "errors"

// ErrInvalidFactorInput reports a weight table or factor map that breaks the
// scoring contract: a missing or unknown category, a non-positive weight, or
// weights that do not sum to 1.
var ErrInvalidFactorInput = errors.New("invalid factor input")
