// Package test provides helpers for testing the plughost CLI commands.
// It executes the CLI like a user would and parses its JSON log output.
package test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"ocm.software/open-component-model/plughost/cmd"
	"ocm.software/open-component-model/plughost/cmd/setup"
	"ocm.software/open-component-model/plughost/internal/configuration"
	"ocm.software/open-component-model/plughost/internal/flags/log"
)

// Options holds the configuration of a CLI invocation in tests.
type Options struct {
	args  []string
	in    io.Reader
	out   io.Writer
	err   io.Writer
	home  string
	setup []setup.Option
}

// Option configures Options.
type Option func(*Options)

// WithArgs sets the command line arguments.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.args = args
	}
}

// WithInput sets the standard input of the CLI.
func WithInput(in io.Reader) Option {
	return func(o *Options) {
		o.in = in
	}
}

// WithOutput captures the standard output of the CLI.
func WithOutput(out io.Writer) Option {
	return func(o *Options) {
		o.out = out
	}
}

// WithErrorOutput captures the standard error of the CLI, which carries the logs.
func WithErrorOutput(err io.Writer) Option {
	return func(o *Options) {
		o.err = err
	}
}

// WithHome sets the home directory of the CLI.
func WithHome(home string) Option {
	return func(o *Options) {
		o.home = home
	}
}

// WithSetup passes options to the setup of the CLI.
func WithSetup(opts ...setup.Option) Option {
	return func(o *Options) {
		o.setup = append(o.setup, opts...)
	}
}

// Run executes the CLI with JSON logs at debug level. Without a home
// directory a temporary one is used; no configuration file is read.
func Run(tb testing.TB, opts ...Option) error {
	tb.Helper()
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.args) == 0 {
		o.args = []string{"help"}
	}
	if o.home == "" {
		o.home = tb.TempDir()
	}
	empty := filepath.Join(tb.TempDir(), "config.yaml")
	args := append([]string{
		"--" + configuration.HomeCommandArgument, o.home,
		"--" + configuration.ConfigCommandArgument, empty,
		"--" + log.FormatFlagName, log.FormatJSON,
		"--" + log.LevelFlagName, log.LevelDebug,
	}, o.args...)

	root := cmd.New(o.setup...)
	if o.in != nil {
		root.SetIn(o.in)
	}
	if o.out != nil {
		root.SetOut(o.out)
	}
	errOut := o.err
	if errOut == nil {
		errOut = io.Discard
	}
	root.SetErr(errOut)
	return cmd.ExecuteRoot(tb.Context(), root, args, o.setup...)
}

// JSONLogReader reads JSON log lines; other lines are kept in Discarded.
type JSONLogReader struct {
	*bytes.Buffer
	Discarded *bytes.Buffer
}

// NewJSONLogReader creates an empty JSONLogReader.
func NewJSONLogReader() *JSONLogReader {
	return &JSONLogReader{
		Buffer:    bytes.NewBuffer(make([]byte, 0, 1024)),
		Discarded: bytes.NewBuffer(make([]byte, 0, 1024)),
	}
}

// JSONLogEntry is a single log line.
type JSONLogEntry struct {
	Level  string
	Msg    string
	Extras map[string]any
}

func (l *JSONLogEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Level, _ = raw["level"].(string)
	l.Msg, _ = raw["msg"].(string)
	delete(raw, "time")
	delete(raw, "level")
	delete(raw, "msg")
	l.Extras = raw
	return nil
}

// List parses the buffered log lines.
func (logs *JSONLogReader) List() ([]*JSONLogEntry, error) {
	scanner := bufio.NewScanner(logs.Buffer)
	var entries []*JSONLogEntry
	for scanner.Scan() {
		data := scanner.Bytes()
		entry := JSONLogEntry{}
		if err := json.Unmarshal(data, &entry); err == nil {
			entries = append(entries, &entry)
		} else if _, err := logs.Discarded.Write(append(data, '\n')); err != nil {
			return nil, err
		}
	}
	return entries, scanner.Err()
}
