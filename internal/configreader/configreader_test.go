package configreader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Config   string
	Name     string
	Verbose  bool
	Workers  int
	Rate     float64
	Interval time.Duration
	Level    logrus.Level
	Skipped  string `name:"-"`
	Renamed  string `name:"other_name"`
}

func TestRead(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("name: from-yaml\nworkers: 3\ninterval: 2m\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tomlPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(tomlPath, []byte("name = \"from-toml\"\nworkers = 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name string
		args []string
		env  []string
		out  testConfig
		err  bool
	}{
		{
			name: "flags",
			args: []string{"-name", "x", "-verbose", "-workers=2", "-rate", "1.5", "-interval", "90s", "-level", "debug", "-other_name", "y"},
			out:  testConfig{Name: "x", Verbose: true, Workers: 2, Rate: 1.5, Interval: time.Second * 90, Level: logrus.DebugLevel, Renamed: "y"},
		},
		{
			name: "environment beats flags",
			args: []string{"-name", "x", "-workers", "2"},
			env:  []string{"NAME=env", "WORKERS=5", "VERBOSE=true", "INTERVAL=1h", "RATE=0.25"},
			out:  testConfig{Name: "env", Verbose: true, Workers: 5, Rate: 0.25, Interval: time.Hour},
		},
		{
			name: "yaml file",
			args: []string{"-config", yamlPath, "-workers", "9"},
			out:  testConfig{Config: yamlPath, Name: "from-yaml", Workers: 9, Interval: time.Minute * 2},
		},
		{
			name: "toml file from environment",
			env:  []string{"config=" + tomlPath},
			out:  testConfig{Config: tomlPath, Name: "from-toml", Workers: 4},
		},
		{
			name: "skipped field has no flag",
			args: []string{"-skipped", "x"},
			err:  true,
		},
		{
			name: "bad int",
			env:  []string{"WORKERS=many"},
			err:  true,
		},
		{
			name: "unknown file type",
			args: []string{"-config", filepath.Join(dir, "config.ini")},
			err:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			var c testConfig
			err := Read("test", tc.args, tc.env, &c)
			if tc.err {
				a.Error(err)
				return
			}

			a.NoError(err)
			a.Equal(tc.out, c)
		})
	}
}

func TestReadRejectsNonStruct(t *testing.T) {
	var s string
	assert.Error(t, Read("test", nil, nil, &s))
	assert.Error(t, Read("test", nil, nil, nil))
}
