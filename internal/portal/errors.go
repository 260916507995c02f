package portal

import "fmt"

// AuthenticationError reports that the portal rejected the configured
// credentials. The portal answers HTTP 200 with an error page on bad logins,
// so this is derived from page markers, never from the status code.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "login failed: invalid credentials"
	}
	return "login failed: " + e.Reason
}

// TransientNetworkError wraps timeouts and connection failures. The client
// never retries these itself; the caller decides whether to re-issue the
// whole tool call.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// ParseError reports that a page was missing a marker the extraction layer
// depends on. This signals portal markup drift, not a transient fault, and
// is never retried.
type ParseError struct {
	Page   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected markup on %s: %s", e.Page, e.Detail)
}

// UnknownSettingError reports a SIM setting name outside the recognized set.
// No request is sent for unrecognized names.
type UnknownSettingError struct {
	Name string
}

func (e *UnknownSettingError) Error() string {
	return fmt.Sprintf("unknown SIM setting %q", e.Name)
}

// InvalidSubscriberError reports a subscriber id that is not among the
// account's phone numbers.
type InvalidSubscriberError struct {
	SubscriberID string
}

func (e *InvalidSubscriberError) Error() string {
	return fmt.Sprintf("subscriber %q is not part of this account", e.SubscriberID)
}

// ValidationError reports malformed caller input, detected before any
// request is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MutationVerificationError reports that a state change was submitted but
// the re-read page state did not match the intent. The change may have
// partially applied, which is why this is distinct from an outright failure.
type MutationVerificationError struct {
	Operation string
	Expected  string
	Actual    string
}

func (e *MutationVerificationError) Error() string {
	return fmt.Sprintf("%s was submitted but not confirmed: expected %s, portal reports %s",
		e.Operation, e.Expected, e.Actual)
}

// NotFoundError reports a requested bill or document that the portal does
// not list.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}
