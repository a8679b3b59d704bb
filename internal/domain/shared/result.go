package shared

// Result is the outcome of a store operation. Stores never return errors
// past their boundary; callers distinguish "done" from "you did something
// wrong" through Result instead.
type Result struct {
	err error
}

// Ok returns a successful result
func Ok() Result {
	return Result{}
}

// Rejected returns a failed result carrying the reason
func Rejected(err error) Result {
	if err == nil {
		err = ErrInvalidState
	}
	return Result{err: err}
}

// OK reports whether the operation succeeded
func (r Result) OK() bool {
	return r.err == nil
}

// Err returns the rejection reason, or nil on success
func (r Result) Err() error {
	return r.err
}

// Message returns a human-readable failure message, or "" on success
func (r Result) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}
