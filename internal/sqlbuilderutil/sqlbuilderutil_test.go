package sqlbuilderutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type widget struct {
	ID          int `sql:",table:widgets"`
	ExternalID  string
	PublishedAt time.Time
	Renamed     string `sql:"other_name"`
	Skipped     string `sql:"-"`
}

func TestMakeTable(t *testing.T) {
	a := assert.New(t)

	table, err := MakeTable(widget{})
	if !a.NoError(err) {
		return
	}

	a.Equal("widgets", table.name)

	for _, name := range []string{"ExternalID", "externalid", "external_id", "PublishedAt", "Renamed", "other_name"} {
		a.True(table.Has(name), name)
		a.NotNil(table.C(name), name)
	}

	a.False(table.Has("Skipped"))
	a.Nil(table.C("Skipped"))
	a.Nil(table.C("nope"))

	a.Panics(func() { table.MustC("nope") })
	a.NotPanics(func() { table.MustC("ExternalID") })
}
