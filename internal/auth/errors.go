package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPromptCancelled     = errors.New("authorization prompt cancelled")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrMissingCode         = errors.New("callback URL has no authorization code")
)

// ConfigurationError means no usable token could be obtained. It lists every
// plausible cause because the manager cannot tell which one applies.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("upwork client could not be initialized. Possible causes:\n")
	b.WriteString("  1. Missing or incorrect UPWORK_CLIENT_ID, UPWORK_CLIENT_SECRET or UPWORK_REDIRECT_URI.\n")
	b.WriteString("  2. The OAuth authorization flow was not completed (no callback URL pasted, or the provider returned an error).\n")
	b.WriteString("  3. Cached UPWORK_ACCESS_TOKEN, UPWORK_REFRESH_TOKEN or UPWORK_EXPIRES_AT are invalid or expired and re-authorization failed.")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "\nMissing variables: %s", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, "\nCause: %v", e.Err)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
