package webhook

import "fmt"

// ValidationError reports an inbound payload that cannot be handled as sent.
// The HTTP layer answers it with 400.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// OrphanThreadError reports a Slack thread that was posted for an issue whose
// thread field could not be written afterwards. The thread exists but nothing
// links it to the issue until an operator repairs it.
type OrphanThreadError struct {
	IssueKey string
	ThreadID string
	Attempts int
	Err      error
}

func (e *OrphanThreadError) Error() string {
	return fmt.Sprintf("thread %s for issue %s could not be linked after %d attempt(s): %v",
		e.ThreadID, e.IssueKey, e.Attempts, e.Err)
}

func (e *OrphanThreadError) Unwrap() error {
	return e.Err
}
