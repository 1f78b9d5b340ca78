package catchpanic

import (
	"fmt"
	"runtime"

	"fknsrs.biz/p/ytcatalog/internal/stackutil"
)

// PanicError carries a recovered panic value and where it happened.
type PanicError struct {
	Value interface{}
	Stack []runtime.Frame
}

func (e *PanicError) Error() string {
	if len(e.Stack) > 0 {
		return fmt.Sprintf("panic: %v (at %s)", e.Value, stackutil.FormatStackFrame(e.Stack[0]))
	}

	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}

func Catch(fn func()) (err error) {
	defer func() {
		if ex := recover(); ex != nil {
			// frames: Catch's deferred func, runtime.gopanic
			err = fmt.Errorf("catchpanic.Catch: %w", &PanicError{Value: ex, Stack: stackutil.GetStack(32, 2)})
		}
	}()

	fn()

	return nil
}

func CatchErr0(fn func() error) error {
	var err error

	if err1 := Catch(func() { err = fn() }); err1 != nil {
		return err1
	}

	return err
}

func CatchErr1[T any](fn func() (T, error)) (T, error) {
	var res T
	var err error

	if err1 := Catch(func() { res, err = fn() }); err1 != nil {
		return res, err1
	}

	return res, err
}
