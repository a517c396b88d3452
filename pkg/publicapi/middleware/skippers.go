package middleware

import (
	"github.com/labstack/echo/v4"
	echomiddelware "github.com/labstack/echo/v4/middleware"
)

func PathMatchSkipper(paths []string) echomiddelware.Skipper {
	skippedPaths := make(map[string]struct{})
	for _, path := range paths {
		skippedPaths[path] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := skippedPaths[c.Path()]
		return ok
	}
}

// ChainedSkipper creates a skipper that skips if any of the provided skippers returns true
func ChainedSkipper(skippers ...echomiddelware.Skipper) echomiddelware.Skipper {
	return func(c echo.Context) bool {
		for _, skipper := range skippers {
			if skipper(c) {
				return true
			}
		}
		return false
	}
}

// SetContentType returns a middleware which sets the response content type.
func SetContentType(contentType string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderContentType, contentType)
			return next(c)
		}
	}
}
