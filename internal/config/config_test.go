package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytcatalog/internal/configreader"
)

func TestLevelList(t *testing.T) {
	for _, tc := range []struct {
		in   string
		out  LevelList
		text string
	}{
		{"-", LevelList{}, "-"},
		{"", LevelList{}, "-"},
		{"error, warning", LevelList{logrus.ErrorLevel, logrus.WarnLevel}, "error,warning"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			a := assert.New(t)

			var l LevelList
			a.NoError(l.UnmarshalText([]byte(tc.in)))
			a.Equal(tc.out, l)

			d, err := l.MarshalText()
			a.NoError(err)
			a.Equal(tc.text, string(d))
		})
	}

	var l LevelList
	assert.Error(t, l.UnmarshalText([]byte("loud")))
}

func TestLogQueries(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out LogQueries
		err bool
	}{
		{in: "none", out: LogQueries{}},
		{in: "", out: LogQueries{}},
		{in: "all", out: LogQueries{Enabled: true}},
		{in: ">250ms", out: LogQueries{Enabled: true, SlowerThan: time.Millisecond * 250}},
		{in: ">soon", err: true},
		{in: "some", err: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			a := assert.New(t)

			var l LogQueries
			err := l.UnmarshalText([]byte(tc.in))
			if tc.err {
				a.Error(err)
				return
			}

			a.NoError(err)
			a.Equal(tc.out, l)
		})
	}
}

func TestValidate(t *testing.T) {
	a := assert.New(t)

	a.NoError(Default().Validate())

	c := Default()
	c.ApplicationDatabase = ""
	a.Error(c.Validate())

	c = Default()
	c.RequestsPerSecond = -1
	a.Error(c.Validate())

	c = Default()
	c.SyncDetailsChunkSize = -1
	a.Error(c.Validate())
}

func TestReadSyncOptions(t *testing.T) {
	a := assert.New(t)

	c := Default()
	a.NoError(configreader.Read("test", []string{"-sync_details_chunk_size", "20"}, []string{"SYNC_BATCH_SIZE=10"}, &c))
	a.Equal(20, c.SyncDetailsChunkSize)
	a.Equal(10, c.SyncBatchSize)
	a.Equal(8, c.SyncConcurrency)
}
