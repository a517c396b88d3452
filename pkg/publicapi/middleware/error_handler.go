package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/apimodels"
)

func CustomHTTPErrorHandler(err error, c echo.Context) {
	var (
		code      int
		message   string
		errorCode string
		component string
		hint      string
		cnErr     cnerrors.Error
		httpErr   *echo.HTTPError
	)

	switch {
	case errors.As(err, &cnErr):
		code = httpStatusCode(cnErr.Code())
		message = cnErr.Error()
		errorCode = string(cnErr.Code())
		component = cnErr.Component()
		hint = cnErr.Hint()

	case errors.As(err, &httpErr):
		// This is needed, in case any other middleware throws an error. In
		// such a scenario we just use it as the error code and the message.
		code = httpErr.Code
		message, _ = httpErr.Message.(string)
		errorCode = string(cnerrors.InternalError)
		component = "APIServer"
		if c.Echo().Debug && httpErr.Internal != nil {
			message += ". " + httpErr.Internal.Error()
		}

	default:
		code = http.StatusInternalServerError
		message = "Internal server error"
		errorCode = string(cnerrors.InternalError)
		component = "Unknown"

		if c.Echo().Debug {
			message += ". " + err.Error()
		}
	}

	// Don't override the status code if it is already been set.
	// This is something that is advised by ECHO framework.
	if !c.Response().Committed {
		apiError := apimodels.APIError{
			HTTPStatusCode: code,
			Message:        message,
			RequestID:      requestID(c),
			Code:           errorCode,
			Component:      component,
			Hint:           hint,
		}
		var responseErr error
		if c.Request().Method == http.MethodHead {
			responseErr = c.NoContent(code)
		} else {
			responseErr = c.JSON(code, apiError)
		}
		if responseErr != nil {
			log.Error().Err(responseErr).
				Str("original_error", err.Error()).
				Msg("Failed to send error response")
		}
	}
}

func httpStatusCode(code cnerrors.ErrorCode) int {
	switch code {
	case cnerrors.ConfigurationError, cnerrors.ProtocolError:
		return http.StatusBadRequest
	case cnerrors.TransportError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestID prefers the id generated by the RequestID middleware over the one sent by the client.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
