package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/eyevinn-osaas/strom-sub001/internal/app"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("strom", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
strom - Builds media graphs from declarative flow files.

Usage:
  strom [options] [FLOW_PATH...]

Arguments:
  FLOW_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	flowFlag := flagSet.String("flow", "", "Path to the flow file or directory.")
	fFlag := flagSet.String("f", "", "Path to the flow file or directory (shorthand).")
	catalogFlag := flagSet.String("catalog", "", "Path to a YAML catalog extending the built-in element catalog.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	httpPortFlag := flagSet.Int("http-port", 0, "Port for the HTTP API. 0 builds, reports and exits.")
	eventsURLFlag := flagSet.String("events-url", "", "socket.io URL receiving diagnostic events.")
	stateFlag := flagSet.String("state", "stopped", "Pipeline state after the build. Options: 'stopped', 'ready', 'paused', 'running'.")
	simulateFlag := flagSet.Bool("simulate", false, "Emit the runtime outputs the flow waits for, as a media runtime would.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	var paths []string
	switch {
	case *flowFlag != "":
		paths = append(paths, *flowFlag)
	case *fFlag != "":
		paths = append(paths, *fFlag)
	}
	paths = append(paths, flagSet.Args()...)
	slog.Debug("Flow paths determined.", "paths", paths)

	if len(paths) == 0 {
		slog.Debug("No flow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	state, err := lifecycle.ParseState(*stateFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: "invalid state: " + err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		FlowPaths:   paths,
		CatalogPath: *catalogFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		HTTPPort:    *httpPortFlag,
		EventsURL:   *eventsURLFlag,
		State:       state,
		Simulate:    *simulateFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
