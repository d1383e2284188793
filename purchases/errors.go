package purchases

import "fmt"

// FetchError reports a failed read from the course store.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// VerificationError reports a purchase lookup that could not be completed.
type VerificationError struct {
	AppxCourseID int
	Err          error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify appx course %d: %v", e.AppxCourseID, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
