// Package log configures the default slog logger of the CLI from its flags.
package log

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ocm.software/open-component-model/plughost/internal/flags/enum"
)

const (
	FormatFlagName = "logformat"

	FormatText = "text"
	FormatJSON = "json"
)

const (
	LevelFlagName = "loglevel"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const (
	OutputFlagName = "logoutput"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// RegisterLoggingFlags adds the persistent logging flags:
//
//	--logformat text|json
//	--loglevel warn|debug|info|error
//	--logoutput stderr|stdout
//
// Warnings are shown by default and logs go to stderr so that command
// output on stdout stays machine readable.
func RegisterLoggingFlags(flagset *pflag.FlagSet) {
	enum.Var(flagset, FormatFlagName, []string{
		FormatText,
		FormatJSON,
	}, `set the log output format that is used to print individual logs
   json: Output logs in JSON format, suitable for machine processing
   text: Output logs in human-readable text format, suitable for console output`)

	enum.Var(flagset, LevelFlagName, []string{
		LevelWarn,
		LevelDebug,
		LevelInfo,
		LevelError,
	}, `sets the logging level
   debug: Show all logs including plugin loading details
   info:  Show informational messages and above
   warn:  Show warnings and errors only (default)
   error: Show errors only`)

	enum.Var(flagset, OutputFlagName, []string{
		OutputStderr,
		OutputStdout,
	}, `set the log output destination
   stderr: Write logs to standard error (default)
   stdout: Write logs to standard output`)
}

// GetBaseLogger creates a logger from the logging flags of cmd.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := levelFromCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to get log level: %w", err)
	}
	format, err := enum.Get(cmd.Flags(), FormatFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to get the log format from the command flag: %w", err)
	}
	output, err := enum.Get(cmd.Flags(), OutputFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to get the log output from the command flag: %w", err)
	}

	var w io.Writer
	switch output {
	case OutputStdout:
		w = cmd.OutOrStdout()
	default:
		w = cmd.ErrOrStderr()
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

func levelFromCommand(cmd *cobra.Command) (slog.Level, error) {
	value, err := enum.Get(cmd.Flags(), LevelFlagName)
	if err != nil {
		return slog.LevelWarn, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", value)
	}
	return level, nil
}
