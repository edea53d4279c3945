package middleware

import (
	"log"
	"time"

	applogger "github.com/Habtu32/brent-oil-change-point-analysis/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. With a nil logger it falls
// back to the stdlib logger so a bare echo instance still records traffic.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			latency := time.Since(start)

			if l == nil {
				log.Printf("[%s] %s %s - %d (%s)",
					req.Method, req.RequestURI, req.RemoteAddr, status, latency)
				return err
			}
			l.Info("http request",
				applogger.String("method", req.Method),
				applogger.String("path", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("latency", latency),
			)
			return err
		}
	}
}
