package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"lionboard/internal/cache"
	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// PseudonymPrefix starts every generated pseudonym.
const PseudonymPrefix = "Lion #"

const (
	pseudonymAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	pseudonymLength   = 4
)

// TokenSource yields the random suffix of a new pseudonym.
type TokenSource func() (string, error)

// RandomToken draws pseudonymLength characters from crypto/rand.
func RandomToken() (string, error) {
	buf := make([]byte, pseudonymLength)
	limit := big.NewInt(int64(len(pseudonymAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = pseudonymAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// IdentityService hands out one stable pseudonym per (user, thread).
// Pseudonyms are not unique across users within a thread.
type IdentityService struct {
	identities repository.ThreadIdentityRepository
	users      repository.UserRepository
	threads    repository.ThreadRepository
	cache      *redis.Client
	token      TokenSource
}

func NewIdentityService(
	identities repository.ThreadIdentityRepository,
	users repository.UserRepository,
	threads repository.ThreadRepository,
	cacheClient *redis.Client,
) *IdentityService {
	return &IdentityService{
		identities: identities,
		users:      users,
		threads:    threads,
		cache:      cacheClient,
		token:      RandomToken,
	}
}

// SetTokenSource replaces the random suffix generator.
func (s *IdentityService) SetTokenSource(ts TokenSource) {
	s.token = ts
}

// Resolve returns the pseudonym of userID inside threadID, creating the
// mapping on first use. Concurrent first calls all observe the same winner.
func (s *IdentityService) Resolve(ctx context.Context, userID, threadID uint) (string, error) {
	if userID == 0 {
		return "", models.NewMissingFieldError("user")
	}
	if threadID == 0 {
		return "", models.NewMissingFieldError("thread")
	}

	ctx, span := observability.StartSpan(ctx, "identity.resolve",
		attribute.Int64("thread.id", int64(threadID)),
		attribute.Int64("user.id", int64(userID)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var pseudonym string
	err = cache.Aside(ctx, s.cache, cache.ThreadIdentityKey(threadID, userID), &pseudonym, cache.ThreadIdentityTTL, func() error {
		p, loadErr := s.resolveStored(ctx, userID, threadID)
		pseudonym = p
		return loadErr
	})
	if err != nil {
		return "", opaque(ctx, "identity.resolve", err)
	}
	return pseudonym, nil
}

func (s *IdentityService) resolveStored(ctx context.Context, userID, threadID uint) (string, error) {
	existing, err := s.identities.Find(ctx, userID, threadID)
	if err == nil {
		observability.IdentityResolutions.WithLabelValues("existing").Inc()
		return existing.Pseudonym, nil
	}
	if !models.HasCode(err, models.CodeNotFound) {
		return "", err
	}

	if ok, err := s.users.Exists(ctx, userID); err != nil {
		return "", err
	} else if !ok {
		return "", models.NewNotFoundError("User", userID)
	}
	if ok, err := s.threads.Exists(ctx, threadID); err != nil {
		return "", err
	} else if !ok {
		return "", models.NewNotFoundError("Thread", threadID)
	}

	suffix, err := s.token()
	if err != nil {
		return "", err
	}
	identity := &models.ThreadIdentity{
		UserID:    userID,
		ThreadID:  threadID,
		Pseudonym: PseudonymPrefix + suffix,
	}
	created, err := s.identities.InsertIfAbsent(ctx, identity)
	if err != nil {
		return "", err
	}
	if created {
		observability.IdentityResolutions.WithLabelValues("created").Inc()
		return identity.Pseudonym, nil
	}

	winner, err := s.identities.Find(ctx, userID, threadID)
	if err != nil {
		return "", err
	}
	observability.IdentityResolutions.WithLabelValues("race_lost").Inc()
	return winner.Pseudonym, nil
}

// ListForThread returns every mapping of threadID.
func (s *IdentityService) ListForThread(ctx context.Context, threadID uint) ([]models.ThreadIdentity, error) {
	if threadID == 0 {
		return nil, models.NewMissingFieldError("thread")
	}
	identities, err := s.identities.ListByThread(ctx, threadID)
	if err != nil {
		return nil, opaque(ctx, "identity.list", err)
	}
	return identities, nil
}
