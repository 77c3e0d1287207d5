package upwork

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMissingID marks a record that has no upstream identifier. Callers log
// and drop it.
var ErrMissingID = errors.New("job record has no upstream id")

// ApiError is a remote failure after a token was available. It carries the
// provider payload for the operator and is never retried automatically.
type ApiError struct {
	StatusCode int
	Payload    string
	Err        error
}

func (e *ApiError) Error() string {
	msg := "upwork api error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Payload != "" {
		msg = fmt.Sprintf("%s: %s", msg, truncate(e.Payload, 500))
	}
	return msg
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
