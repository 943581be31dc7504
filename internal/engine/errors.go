package engine

import "fmt"

// ComputationError reports an analysis that panicked or produced non-finite
// numbers. Its results are never cached.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: computation failed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// guard runs fn and converts a panic into a ComputationError for op.
func guard[T any](op string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			if rerr, ok := r.(error); ok {
				err = &ComputationError{Op: op, Err: rerr}
				return
			}
			err = &ComputationError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}
