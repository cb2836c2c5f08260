// Package debug sets up logging and tracing from command line flags.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dotnet-toolset/Netfuser-sub001/internal/flags"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	logjsonFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON (deprecated: use --log.format=json)",
		Hidden:   true,
		Category: flags.LoggingCategory,
	}
	logFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Usage:    "Log format to use (json|logfmt|terminal)",
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file",
		Category: flags.LoggingCategory,
	}
	logRotateFlag = &cli.BoolFlag{
		Name:     "log.rotate",
		Usage:    "Enables log file rotation",
		Category: flags.LoggingCategory,
	}
	logMaxSizeMBsFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Maximum size in MBs of a single log file",
		Value:    100,
		Category: flags.LoggingCategory,
	}
	logMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Usage:    "Maximum number of log files to retain",
		Value:    10,
		Category: flags.LoggingCategory,
	}
	logMaxAgeFlag = &cli.IntFlag{
		Name:     "log.maxage",
		Usage:    "Maximum number of days to retain a log file",
		Value:    30,
		Category: flags.LoggingCategory,
	}
	logCompressFlag = &cli.BoolFlag{
		Name:     "log.compress",
		Usage:    "Compress the log files",
		Value:    false,
		Category: flags.LoggingCategory,
	}
	traceFlag = &cli.StringFlag{
		Name:     "trace",
		Usage:    "Write execution trace to the given file",
		Category: flags.LoggingCategory,
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	verbosityFlag,
	logjsonFlag,
	logFormatFlag,
	logFileFlag,
	logRotateFlag,
	logMaxSizeMBsFlag,
	logMaxBackupsFlag,
	logMaxAgeFlag,
	logCompressFlag,
	traceFlag,
}

var logOutputFile io.WriteCloser

// Setup initializes logging and tracing based on the CLI flags.
// It should be called as early as possible in the program.
func Setup(ctx *cli.Context) error {
	var (
		handler        slog.Handler
		terminalOutput = io.Writer(os.Stderr)
		output         io.Writer
		logFmtFlag     = ctx.String(logFormatFlag.Name)
		logFile        = ctx.String(logFileFlag.Name)
		rotation       = ctx.Bool(logRotateFlag.Name)
		level          = log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
		useColor       = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	)
	if len(logFile) > 0 {
		if err := validateLogLocation(filepath.Dir(logFile)); err != nil {
			return fmt.Errorf("failed to initialize file logger: %v", err)
		}
	}
	context := []interface{}{"rotate", rotation}
	if len(logFmtFlag) > 0 {
		context = append(context, "format", logFmtFlag)
	} else {
		context = append(context, "format", "terminal")
	}
	if useColor && logFile == "" && (logFmtFlag == "" || logFmtFlag == "terminal") {
		terminalOutput = colorable.NewColorableStderr()
	} else {
		useColor = false
	}
	switch {
	case rotation:
		// Lumberjack uses <processname>-lumberjack.log in os.TempDir() if empty.
		if len(logFile) > 0 {
			context = append(context, "location", logFile)
		} else {
			context = append(context, "location", filepath.Join(os.TempDir(), "netfuser-lumberjack.log"))
		}
		logOutputFile = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    ctx.Int(logMaxSizeMBsFlag.Name),
			MaxBackups: ctx.Int(logMaxBackupsFlag.Name),
			MaxAge:     ctx.Int(logMaxAgeFlag.Name),
			Compress:   ctx.Bool(logCompressFlag.Name),
		}
		output = io.MultiWriter(terminalOutput, logOutputFile)
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logOutputFile = f
		output = io.MultiWriter(logOutputFile, terminalOutput)
		context = append(context, "location", logFile)
	default:
		output = terminalOutput
	}

	switch {
	case ctx.Bool(logjsonFlag.Name):
		defer log.Warn("The flag '--log.json' is deprecated, please use '--log.format=json' instead")
		handler = log.JSONHandlerWithLevel(output, level)
	case logFmtFlag == "json":
		handler = log.JSONHandlerWithLevel(output, level)
	case logFmtFlag == "logfmt":
		handler = log.LogfmtHandlerWithLevel(output, level)
	case logFmtFlag == "", logFmtFlag == "terminal":
		handler = log.NewTerminalHandlerWithLevel(output, level, useColor)
	default:
		return fmt.Errorf("unknown log format: %v", logFmtFlag)
	}
	log.SetDefault(log.NewLogger(handler))

	if file := ctx.String(traceFlag.Name); file != "" {
		if err := Tracer.StartGoTrace(file); err != nil {
			return err
		}
	}
	if len(logFile) > 0 || rotation {
		log.Info("Logging configured", context...)
	}
	return nil
}

// Exit stops the tracer and closes the log file.
func Exit() {
	if Tracer.Tracing() {
		Tracer.StopGoTrace()
	}
	if logOutputFile != nil {
		logOutputFile.Close()
		logOutputFile = nil
	}
}

func validateLogLocation(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("error creating the directory: %w", err)
	}
	// Check if the path is writable by trying to create a temporary file
	tmp := filepath.Join(path, "tmp")
	if f, err := os.Create(tmp); err != nil {
		return err
	} else {
		f.Close()
	}
	return os.Remove(tmp)
}
