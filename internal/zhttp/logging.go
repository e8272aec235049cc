package zhttp

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/sassoftware/lcplinput/internal/logrotate"
)

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00" // RFC3339 with 3 decimal places, padded

// SetupLogging initializes zerolog with reasonable defaults
func SetupLogging(levelName, logFile string) error {
	zerolog.TimeFieldFormat = rfc3339Milli
	zerolog.DurationFieldInteger = true
	switch logFile {
	case "-":
		// write JSON to stderr
	case "":
		// write pretty text to stderr
		log.Logger = log.Logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		})
	default:
		// write JSON to file
		w, err := logrotate.NewWriter(logFile)
		if err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
		log.Logger = log.Logger.Output(w)
	}
	// set default log level
	if levelName == "" {
		levelName = zerolog.InfoLevel.String()
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	log.Logger = log.Logger.Level(level)
	// pass stdlib logger through
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
	return nil
}

// LoggingTransport logs every outgoing request once it completes. The logger
// attached to the request context is used if there is one.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger zerolog.Logger

	now func() time.Time
}

// NewLoggingTransport wraps base, which defaults to http.DefaultTransport
func NewLoggingTransport(base http.RoundTripper, logger zerolog.Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingTransport{Base: base, Logger: logger, now: time.Now}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	now := t.now
	if now == nil {
		now = time.Now
	}
	logger := t.Logger
	if ctxLogger := zerolog.Ctx(req.Context()); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}
	start := now()
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Dur("dur", now().Sub(start)).
			Msg("request failed")
		return nil, err
	}
	logger.Info().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Int64("len", resp.ContentLength).
		Dur("dur", now().Sub(start)).
		Msg("request")
	return resp, nil
}
