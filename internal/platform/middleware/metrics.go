package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.ObserveRequest(c.Request().Method, path, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}
