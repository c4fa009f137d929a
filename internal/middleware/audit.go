package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wager_escrow/internal/audit"
)

// AuditSink stores audit entries.
type AuditSink interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Audit emits a structured log line for each request and, when sink is set,
// persists every state-changing request.
func Audit(logger *slog.Logger, sink AuditSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		duration := time.Since(start)
		requestID := RequestIDFrom(c)
		signer := SignerFrom(c).String()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if signer != "" {
			attrs = append(attrs, slog.String("signer", signer))
		}

		if sink != nil && isUnsafe(c.Method()) {
			entry := audit.Entry{
				OccurredAt: start,
				RequestID:  requestID,
				Signer:     signer,
				Method:     c.Method(),
				Path:       c.Path(),
				Status:     status,
			}
			if err != nil {
				entry.Error = err.Error()
			} else if code, ok := c.Locals(errorCodeLocal).(string); ok {
				entry.Error = code
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if recErr := sink.Record(ctx, entry); recErr != nil {
				logger.Warn("audit record failed", slog.String("request_id", requestID), slog.Any("error", recErr))
			}
			cancel()
		}

		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}

const errorCodeLocal = "error_code"

// SetErrorCode lets a handler that renders its own error body tag the audit
// entry with a machine-readable code.
func SetErrorCode(c *fiber.Ctx, code string) {
	c.Locals(errorCodeLocal, code)
}

func isUnsafe(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	default:
		return true
	}
}
