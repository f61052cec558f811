package memory

import (
	"errors"
	"fmt"
)

// ErrIntegrity matches every IntegrityError via errors.Is.
var ErrIntegrity = errors.New("persisted crawl state failed integrity check")

// IntegrityError reports persisted state that cannot be loaded. The crawl
// must not start until the state is reset.
type IntegrityError struct {
	Log    string // which log the record came from
	Line   int    // 1-based line number, 0 when the whole log is affected
	Record string
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	msg := e.Log
	if e.Line > 0 {
		msg = fmt.Sprintf("%s line %d", e.Log, e.Line)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Record != "" {
		msg = fmt.Sprintf("%s (record %q)", msg, e.Record)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIntegrity) hold for any IntegrityError.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
