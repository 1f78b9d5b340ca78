package logrusstackhook

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytcatalog/internal/stackutil"
)

var (
	DefaultLevels = []logrus.Level{logrus.DebugLevel, logrus.TraceLevel}
	// frames from these packages are never interesting. The hook's own
	// methods are listed by receiver so callers in this package still show.
	DefaultIgnorePackages = []string{
		"github.com/sirupsen/logrus",
		"fknsrs.biz/p/ytcatalog/internal/logrusstackhook.(*StackHook)",
		"runtime",
	}
)

// StackHook adds the calling stack to entries at the configured levels, one
// field per frame ("stack.00", "stack.01", ...).
type StackHook struct {
	levels         []logrus.Level
	ignorePackages []string
	maxFrames      int
}

func NewStackHook(levels []logrus.Level, ignorePackages []string) *StackHook {
	if levels == nil {
		levels = DefaultLevels
	}

	return &StackHook{
		levels:         levels,
		ignorePackages: append(append([]string{}, DefaultIgnorePackages...), ignorePackages...),
		maxFrames:      16,
	}
}

func (h *StackHook) Levels() []logrus.Level {
	return h.levels
}

func (h *StackHook) Fire(e *logrus.Entry) error {
	n := 0

	for _, frame := range stackutil.GetStack(64, 0) {
		if stackutil.InPackage(frame, h.ignorePackages) {
			continue
		}

		if n >= h.maxFrames {
			break
		}

		e.Data[fmt.Sprintf("stack.%02d", n)] = stackutil.FormatStackFrame(frame)
		n++
	}

	return nil
}
