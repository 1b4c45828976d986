// Package service holds the trust and moderation workflows: pseudonymous
// identities, the audit trail, redaction, and content screening.
package service

import (
	"context"
	"errors"
	"log/slog"

	"lionboard/internal/models"
	"lionboard/internal/observability"
)

// ErrOperationFailed hides storage failures from callers. The cause is
// logged where it happens.
var ErrOperationFailed = errors.New("operation failed")

// ModeratorCheck reports whether userID may moderate content.
type ModeratorCheck func(ctx context.Context, userID uint) (bool, error)

// opaque passes typed application errors through and converts anything else
// into ErrOperationFailed after logging it.
func opaque(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) || errors.Is(err, ErrOperationFailed) {
		return err
	}
	observability.Logger.ErrorContext(ctx, "storage operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return ErrOperationFailed
}
