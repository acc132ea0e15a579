package dispatch

import "fmt"

// ValidationError marks a permanently malformed request. The message is
// dead-lettered; redelivery would fail the same way forever.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// TransientError marks a dependency failure that survived the retry budget.
// The message stays unacknowledged so the queue redelivers it once the
// current owner's session expires.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
