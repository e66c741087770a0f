package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-hclog"
)

// ErrorLocalKey holds an internal error message that handlers want logged
// with the request but never sent to the client.
const ErrorLocalKey = "request_error"

// Logger is a middleware that logs each HTTP request once it has completed.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency_ms
// - error, when a handler recorded one under ErrorLocalKey
//
// 5xx responses are logged at error level, 4xx at warn and the rest at info.
func Logger(log hclog.Logger) fiber.Handler {
	log = log.Named("http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		args := []any{
			"request_id", rid,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000,
		}
		if msg, ok := c.Locals(ErrorLocalKey).(string); ok && msg != "" {
			args = append(args, "error", msg)
		} else if err != nil {
			args = append(args, "error", err.Error())
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", args...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", args...)
		default:
			log.Info("request", args...)
		}

		return err
	}
}
