package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddelware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger logs every request that is not skipped at logLevel, raised to
// warn for client errors and to error for server errors.
func RequestLogger(logger zerolog.Logger, logLevel zerolog.Level, skipper echomiddelware.Skipper) echo.MiddlewareFunc {
	return echomiddelware.RequestLoggerWithConfig(echomiddelware.RequestLoggerConfig{
		Skipper:      skipper,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddelware.RequestLoggerValues) error {
			level := logLevel
			if v.Status >= http.StatusInternalServerError && level < zerolog.ErrorLevel {
				level = zerolog.ErrorLevel
			} else if v.Status >= http.StatusBadRequest && level < zerolog.WarnLevel {
				level = zerolog.WarnLevel
			}
			event := logger.WithLevel(level).
				Str("Method", v.Method).
				Str("URI", v.URI).
				Str("RemoteAddr", v.RemoteIP).
				Int("StatusCode", v.Status).
				Dur("Duration", v.Latency).
				Str("RequestID", v.RequestID).
				Str("UserAgent", v.UserAgent)
			if v.Error != nil {
				event = event.Err(v.Error)
			}
			event.Send()
			return nil
		},
	})
}
