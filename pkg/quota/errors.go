package quota

import "errors"

// ErrExhausted signals a denied Allow: the daily call budget is spent
// until the next UTC midnight.
var ErrExhausted = errors.New("daily model call quota exhausted")
