package stackutil

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStack(t *testing.T) {
	a := assert.New(t)

	stack := GetStack(10, 0)
	if a.NotEmpty(stack) {
		a.True(strings.HasSuffix(stack[0].Function, "stackutil.TestGetStack"), stack[0].Function)
	}
}

func TestInPackage(t *testing.T) {
	a := assert.New(t)

	f := runtime.Frame{Function: "fknsrs.biz/p/ytcatalog/internal/syncer.(*Engine).SyncChannel"}

	a.True(InPackage(f, []string{"fknsrs.biz/p/ytcatalog/internal/syncer"}))
	a.True(InPackage(f, []string{"fknsrs.biz/p/ytcatalog/internal"}))
	a.False(InPackage(f, []string{"fknsrs.biz/p/ytcatalog/internal/sync"}))
	a.False(InPackage(f, nil))
}
