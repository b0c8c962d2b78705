// Package middleware carries the echo middleware shared by the case-report
// API: request identifiers, structured request logging and panic recovery.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

// ContextKeyRequestID is the echo context key the request identifier is
// stored under for downstream middleware.
const ContextKeyRequestID = "request_id"

// RequestID propagates an incoming X-Request-ID header or assigns a fresh
// one, exposing it on the context and the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(ContextKeyRequestID, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}
