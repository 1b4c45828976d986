package service

import (
	"context"
	"log/slog"
	"time"

	"lionboard/internal/cache"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// ExpiryService destroys threads past their expires_at.
type ExpiryService struct {
	threads repository.ThreadRepository
	cache   *redis.Client
	now     func() time.Time
}

func NewExpiryService(threads repository.ThreadRepository, cacheClient *redis.Client) *ExpiryService {
	return &ExpiryService{
		threads: threads,
		cache:   cacheClient,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PurgeExpired deletes expired threads with everything hanging off them and
// returns how many threads were removed.
func (s *ExpiryService) PurgeExpired(ctx context.Context) (int, error) {
	ids, err := s.threads.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, opaque(ctx, "expiry.purge", err)
	}
	for _, id := range ids {
		cache.InvalidateThread(ctx, s.cache, id)
	}
	if len(ids) > 0 {
		observability.Logger.InfoContext(ctx, "expired threads purged", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}

// Schedule registers PurgeExpired on c using a cron spec such as "@every 10m".
func (s *ExpiryService) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := s.PurgeExpired(ctx); err != nil {
			observability.Logger.ErrorContext(ctx, "thread expiry run failed", slog.String("error", err.Error()))
		}
	})
}
