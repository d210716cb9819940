package jira

import (
	"fmt"
	"io"
	"strings"

	jira "github.com/andygrunwald/go-jira"
)

// TrackerError reports a failed JIRA API call. StatusCode is zero when the
// request never produced a response.
type TrackerError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TrackerError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("jira %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("jira %s failed (status %d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *TrackerError) Unwrap() error {
	return e.Err
}

// newTrackerError builds a TrackerError from a go-jira response. go-jira leaves
// the body unread for some calls and consumes it into err for others, so the
// error text stands in for the body when nothing is left to read.
func newTrackerError(op string, resp *jira.Response, err error) error {
	te := &TrackerError{Op: op, Err: err}

	if resp != nil && resp.Response != nil {
		te.StatusCode = resp.StatusCode
		if resp.Body != nil {
			if body, readErr := io.ReadAll(resp.Body); readErr == nil {
				te.Body = strings.TrimSpace(string(body))
			}
			resp.Body.Close()
		}
	}

	if te.Body == "" && err != nil {
		te.Body = err.Error()
	}

	return te
}
