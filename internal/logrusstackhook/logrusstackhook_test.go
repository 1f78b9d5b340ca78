package logrusstackhook

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type captureHook struct{ entries []*logrus.Entry }

func (c *captureHook) Levels() []logrus.Level { return logrus.AllLevels }
func (c *captureHook) Fire(e *logrus.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func TestStackHook(t *testing.T) {
	a := assert.New(t)

	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.TraceLevel)
	l.AddHook(NewStackHook(nil, nil))

	c := &captureHook{}
	l.AddHook(c)

	l.Debug("with stack")
	l.Info("without stack")

	if a.Len(c.entries, 2) {
		top, ok := c.entries[0].Data["stack.00"].(string)
		a.True(ok)
		a.True(strings.Contains(top, "TestStackHook"), top)

		for k, v := range c.entries[0].Data {
			if strings.HasPrefix(k, "stack.") {
				a.NotContains(v, "(*StackHook).Fire")
				a.NotContains(v, "sirupsen/logrus.")
			}
		}

		_, ok = c.entries[1].Data["stack.00"]
		a.False(ok)
	}
}
