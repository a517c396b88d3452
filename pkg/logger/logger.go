package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// LogType selects where log lines are written.
type LogType string

const (
	// LogTypeDefault writes human readable lines to stderr.
	LogTypeDefault LogType = "default"
	// LogTypeJSON writes JSON lines to stdout.
	LogTypeJSON LogType = "json"
	// LogTypeCombined writes both of the above.
	LogTypeCombined LogType = "combined"
	// LogTypeEvent discards log lines, leaving stdout to command output.
	LogTypeEvent LogType = "event"
)

var stderr = struct{ io.Writer }{os.Stderr}

const agentIDFieldName = "AgentID"

func init() { //nolint:gochecknoinits // init with zerolog is idiomatic
	configureLogging(levelFromEnv(), LogType(strings.ToLower(os.Getenv("LOG_TYPE"))))
}

type tTesting interface {
	Log(args ...interface{})
	Logf(format string, args ...interface{})
	Helper()
	Cleanup(f func())
}

// ConfigureTestLogging allows logs to be associated with individual tests
func ConfigureTestLogging(t tTesting) {
	oldLogger := log.Logger
	oldContextLogger := zerolog.DefaultContextLogger
	configureLogging(levelFromEnv(), LogTypeDefault, zerolog.ConsoleTestWriter(t))
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.DefaultContextLogger = oldContextLogger
	})
}

// ConfigureLogging sets up the global logger from command line settings.
// An empty level or type falls back to the LOG_LEVEL and LOG_TYPE environment variables.
func ConfigureLogging(level string, logType string) error {
	lvl := levelFromEnv()
	if level != "" {
		parsed, err := ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}
	lt := LogType(strings.ToLower(os.Getenv("LOG_TYPE")))
	if logType != "" {
		parsed, err := ParseLogType(logType)
		if err != nil {
			return err
		}
		lt = parsed
	}
	configureLogging(lvl, lt)
	return nil
}

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// ParseLogType converts a log type name into a LogType.
func ParseLogType(logType string) (LogType, error) {
	switch lt := LogType(strings.ToLower(strings.TrimSpace(logType))); lt {
	case LogTypeDefault, LogTypeJSON, LogTypeCombined, LogTypeEvent:
		return lt, nil
	case "":
		return LogTypeDefault, nil
	default:
		return "", fmt.Errorf("unknown log type %q, expected one of default, json, combined or event", logType)
	}
}

func levelFromEnv() zerolog.Level {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func configureLogging(level zerolog.Level, logType LogType, loggingOptions ...func(w *zerolog.ConsoleWriter)) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(level)

	isTerminal := isatty.IsTerminal(os.Stdout.Fd())

	defaultLogging := func(w *zerolog.ConsoleWriter) {
		w.Out = stderr
		w.NoColor = !isTerminal
		w.TimeFormat = "15:04:05.999 |"
		w.PartsOrder = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}

		w.FormatFieldName = func(i interface{}) string {
			return fmt.Sprintf("[%s:", i)
		}

		w.FormatFieldValue = func(i interface{}) string {
			// don't print nil in case field value wasn't preset. e.g. no agent id
			if i == nil {
				i = ""
			}
			return fmt.Sprintf("%s]", i)
		}
	}

	loggingOptions = append([]func(w *zerolog.ConsoleWriter){defaultLogging}, loggingOptions...)

	textWriter := zerolog.NewConsoleWriter(loggingOptions...)

	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		short := file

		separatorCount := 2
		countedSeparators := 0

		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				countedSeparators += 1
				if countedSeparators >= separatorCount {
					short = file[i+1:]
					break
				}
			}
		}
		return short + ":" + strconv.Itoa(line)
	}

	// we default to text output
	var useLogWriter io.Writer = textWriter

	switch logType {
	case LogTypeJSON:
		useLogWriter = os.Stdout
	case LogTypeCombined:
		useLogWriter = zerolog.MultiLevelWriter(textWriter, os.Stdout)
	case LogTypeEvent:
		useLogWriter = io.Discard
	default:
	}

	log.Logger = zerolog.New(useLogWriter).With().Timestamp().Caller().Logger()
	// While the normal flow will use ContextWithAgentIDLogger, this won't be so for tests.
	// Tests will use the DefaultContextLogger instead
	zerolog.DefaultContextLogger = &log.Logger
}

// ContextWithAgentIDLogger returns a context whose logger tags every line with the agent id.
func ContextWithAgentIDLogger(ctx context.Context, agentID string) context.Context {
	l := log.With().Str(agentIDFieldName, agentID).Logger()
	return l.WithContext(ctx)
}

// ErrOrDebug logs at error level if err is not nil, and at debug level otherwise.
func ErrOrDebug(err error) *zerolog.Event {
	if err != nil {
		return log.Error().Err(err)
	}
	return log.Debug()
}
