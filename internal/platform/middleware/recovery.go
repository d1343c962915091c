package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts panics anywhere below the transport into a 500 envelope
// with the INTERNAL_ERROR code, so even a crashing handler answers in the
// gateway's error shape.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					rid, _ := c.Get("request_id").(string)
					logger.Error().
						Str("request_id", rid).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					if !c.Response().Committed {
						err = c.JSON(http.StatusInternalServerError, errorEnvelope(
							http.StatusInternalServerError, "INTERNAL_ERROR",
							"internal server error"))
					}
				}
			}()
			return next(c)
		}
	}
}

// errorEnvelope builds the gateway's uniform error body for responses the
// middleware writes itself, before a request ever reaches the route table.
func errorEnvelope(status int, code, message string) map[string]interface{} {
	return map[string]interface{}{
		"status": status,
		"body":   nil,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
}
