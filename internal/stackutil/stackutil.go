package stackutil

import (
	"fmt"
	"runtime"
	"strings"
)

// GetStack returns up to depth frames of the caller's stack, leaving out the
// first skip frames above the caller.
func GetStack(depth, skip int) []runtime.Frame {
	pc := make([]uintptr, depth)

	// 2 covers runtime.Callers and GetStack itself
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pc[:n])

	var a []runtime.Frame
	for {
		frame, more := frames.Next()
		a = append(a, frame)
		if !more {
			break
		}
	}

	return a
}

func FormatStackFrame(f runtime.Frame) string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Function)
}

// InPackage reports whether the frame's function belongs to one of the
// given packages (or a package nested under one of them).
func InPackage(f runtime.Frame, packages []string) bool {
	for _, p := range packages {
		if strings.HasPrefix(f.Function, p+".") || strings.HasPrefix(f.Function, p+"/") {
			return true
		}
	}

	return false
}
