// Package configreader fills a config struct from a file, then command-line
// flags, then environment variables, each overriding the one before.
package configreader

import (
	"encoding"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"fknsrs.biz/p/ytcatalog/internal/stringutil"
)

// Read populates out, which must be a pointer to a struct. Fields are named
// by their `name` tag or their snake_cased field name; `name:"-"` skips a
// field. The config file is named by the "config" field.
func Read(program string, arguments, environment []string, out interface{}) error {
	if _, err := structValue(out); err != nil {
		return fmt.Errorf("configreader.Read: %w", err)
	}

	if configPath, ok := lookup(arguments, environment, out, "config"); ok && configPath != "" {
		if err := readFile(configPath, out); err != nil {
			return fmt.Errorf("configreader.Read: %w", err)
		}
	}

	if err := readArguments(program, arguments, out); err != nil {
		return fmt.Errorf("configreader.Read: could not read command-line flags: %w", err)
	}

	if err := readEnvironment(environment, out); err != nil {
		return fmt.Errorf("configreader.Read: could not read environment variables: %w", err)
	}

	return nil
}

func structValue(v interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("configreader.structValue: value must be a non-nil pointer; was instead %T", v)
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("configreader.structValue: value must be a pointer to a struct; was instead %T", v)
	}

	return rv, nil
}

type field struct {
	name   string
	help   string
	value  reflect.Value
	goName string
}

func fields(out interface{}) ([]field, error) {
	val, err := structValue(out)
	if err != nil {
		return nil, err
	}

	typ := val.Type()

	var a []field
	for i := 0; i < typ.NumField(); i++ {
		tf := typ.Field(i)
		if !tf.IsExported() {
			continue
		}

		name := tf.Tag.Get("name")
		if name == "" {
			name = stringutil.PascalToSnake(tf.Name)
		}
		if name == "-" {
			continue
		}

		a = append(a, field{name: name, help: tf.Tag.Get("help"), value: val.Field(i), goName: tf.Name})
	}

	return a, nil
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func isText(t reflect.Type) bool {
	p := reflect.PointerTo(t)
	return p.Implements(textMarshalerType) && p.Implements(textUnmarshalerType)
}

// set parses s into v according to v's type.
func set(v reflect.Value, s string) error {
	switch {
	case v.Type() == durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
	case isText(v.Type()):
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	case v.Kind() == reflect.String:
		v.SetString(s)
	case v.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case v.Kind() == reflect.Int || v.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case v.Kind() == reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}

	return nil
}

func lookup(arguments, environment []string, obj interface{}, name string) (string, bool) {
	if s, ok := fromArguments(arguments, name); ok {
		return s, true
	}

	if s, ok := fromEnvironment(environment, name); ok {
		return s, true
	}

	a, err := fields(obj)
	if err != nil {
		return "", false
	}

	for _, f := range a {
		if f.name == name && f.value.Kind() == reflect.String {
			return f.value.String(), true
		}
	}

	return "", false
}

func fromArguments(arguments []string, name string) (string, bool) {
	for _, prefix := range []string{"-" + name, "--" + name} {
		for i := 0; i < len(arguments); i++ {
			if arguments[i] == prefix && i+1 < len(arguments) {
				return arguments[i+1], true
			}

			if s, ok := strings.CutPrefix(arguments[i], prefix+"="); ok {
				return s, true
			}
		}
	}

	return "", false
}

// environment variable names match case-insensitively
func fromEnvironment(environment []string, name string) (string, bool) {
	prefix := strings.ToLower(name + "=")

	for _, e := range environment {
		if strings.HasPrefix(strings.ToLower(e), prefix) {
			return e[len(prefix):], true
		}
	}

	return "", false
}

func readFile(filePath string, out interface{}) error {
	fd, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("readFile: could not open config file: %w", err)
	}
	defer fd.Close()

	var decode func(r io.Reader) error

	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		decode = func(r io.Reader) error { return yaml.NewDecoder(r).Decode(out) }
	case ".toml":
		decode = func(r io.Reader) error { return toml.NewDecoder(r).Decode(out) }
	default:
		return fmt.Errorf("readFile: could not determine file type for %q", filePath)
	}

	if err := decode(fd); err != nil {
		return fmt.Errorf("readFile: could not parse %q: %w", filePath, err)
	}

	return nil
}

type flagValue struct {
	v reflect.Value
}

func (f flagValue) String() string {
	if !f.v.IsValid() {
		return ""
	}

	switch {
	case f.v.Type() == durationType:
		return time.Duration(f.v.Int()).String()
	case isText(f.v.Type()):
		d, err := f.v.Addr().Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return ""
		}
		return string(d)
	default:
		return fmt.Sprint(f.v.Interface())
	}
}

func (f flagValue) Set(s string) error {
	return set(f.v, s)
}

func (f flagValue) IsBoolFlag() bool {
	return f.v.IsValid() && f.v.Kind() == reflect.Bool
}

func readArguments(program string, arguments []string, out interface{}) error {
	a, err := fields(out)
	if err != nil {
		return fmt.Errorf("configreader.readArguments: %w", err)
	}

	flagSet := flag.NewFlagSet(program, flag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintf(flagSet.Output(), "Usage: %s [OPTIONS]\n", program)
		flagSet.PrintDefaults()
	}

	for _, f := range a {
		if !isSupported(f.value) {
			return fmt.Errorf("configreader.readArguments: could not define flag for %s (%s) with type %s", f.goName, f.name, f.value.Type())
		}

		flagSet.Var(flagValue{v: f.value}, f.name, f.help)
	}

	return flagSet.Parse(arguments)
}

func isSupported(v reflect.Value) bool {
	switch {
	case v.Type() == durationType, isText(v.Type()):
		return true
	}

	switch v.Kind() {
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64:
		return true
	}

	return false
}

func readEnvironment(environment []string, out interface{}) error {
	a, err := fields(out)
	if err != nil {
		return fmt.Errorf("configreader.readEnvironment: %w", err)
	}

	for _, f := range a {
		s, ok := fromEnvironment(environment, f.name)
		if !ok {
			continue
		}

		if err := set(f.value, s); err != nil {
			return fmt.Errorf("configreader.readEnvironment: could not read %s (%s): %w", f.goName, f.name, err)
		}
	}

	return nil
}
