// Package seed creates demo data for development databases. Content goes
// through the same services as the API, so pseudonyms and audit entries are
// produced the way production creates them.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"
	"lionboard/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options tunes a Seeder.
type Options struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// MaxAnswers bounds the answers generated per thread.
	MaxAnswers int
	// RevealRate is the share of items whose author reveals their identity.
	RevealRate float64
}

// Seeder persists demo users and content.
type Seeder struct {
	db        *gorm.DB
	users     repository.UserRepository
	content   *service.ContentService
	redaction *service.RedactionService
	opts      Options
	rng       *rand.Rand
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MaxAnswers <= 0 {
		opts.MaxAnswers = 4
	}

	users := repository.NewUserRepository(db)
	threads := repository.NewThreadRepository(db)
	answers := repository.NewAnswerRepository(db)
	audit := service.NewAuditService(repository.NewAuditLogRepository(db))
	identity := service.NewIdentityService(repository.NewThreadIdentityRepository(db), users, threads, nil)
	roles := service.NewRoleService(users, nil)

	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:        db,
		users:     users,
		content:   service.NewContentService(db, threads, answers, repository.NewCommentRepository(db), users, identity, audit, nil),
		redaction: service.NewRedactionService(db, threads, answers, users, audit, roles.CanModerate),
		opts:      opts,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes every seeded table's rows, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.AuditLog{},
			&models.ThreadIdentity{},
			&models.Comment{},
			&models.Answer{},
			&models.Thread{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// CreateUser stores one account with the default password.
func (s *Seeder) CreateUser(ctx context.Context, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:        fmt.Sprintf("%s.%d@campus.example.edu", gofakeit.FirstName(), gofakeit.Number(1000, 999999)),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedUsers creates n students plus one moderator.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, *models.User, error) {
	moderator, err := s.CreateUser(ctx, models.RoleModerator)
	if err != nil {
		return nil, nil, fmt.Errorf("create moderator: %w", err)
	}
	students := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u, err := s.CreateUser(ctx, models.RoleStudent)
		if err != nil {
			return nil, nil, fmt.Errorf("create student %d: %w", i, err)
		}
		students = append(students, u)
	}
	return students, moderator, nil
}

// SeedThreads creates n threads by random authors with answers and
// comments, reveals some identities and redacts roughly one thread in ten.
func (s *Seeder) SeedThreads(ctx context.Context, authors []*models.User, moderator *models.User, n int) (int, error) {
	if len(authors) == 0 {
		return 0, fmt.Errorf("seed threads: no authors")
	}
	created := 0
	for i := 0; i < n; i++ {
		author := authors[s.rng.Intn(len(authors))]
		thread, err := s.content.CreateThread(ctx, service.CreateThreadInput{
			UserID: author.ID,
			Title:  gofakeit.Question(),
			Body:   gofakeit.Paragraph(1, 3, 8, "\n"),
		})
		if err != nil {
			return created, fmt.Errorf("create thread: %w", err)
		}
		created++
		s.maybeReveal(ctx, models.ContentThread, thread.Thread.ID, author.ID)

		for j := 0; j < s.rng.Intn(s.opts.MaxAnswers+1); j++ {
			replier := authors[s.rng.Intn(len(authors))]
			answer, err := s.content.CreateAnswer(ctx, service.CreateAnswerInput{
				UserID:   replier.ID,
				ThreadID: thread.Thread.ID,
				Body:     gofakeit.Sentence(12),
			})
			if err != nil {
				return created, fmt.Errorf("create answer: %w", err)
			}
			s.maybeReveal(ctx, models.ContentAnswer, answer.Answer.ID, replier.ID)

			if _, err := s.content.CreateComment(ctx, service.CreateCommentInput{
				UserID:   author.ID,
				ThreadID: thread.Thread.ID,
				Body:     gofakeit.HipsterSentence(6),
			}); err != nil {
				return created, fmt.Errorf("create comment: %w", err)
			}
		}

		if moderator != nil && i%10 == 9 {
			if _, err := s.redaction.Redact(ctx, service.RedactInput{
				Kind:    models.ContentThread,
				ItemID:  thread.Thread.ID,
				ActorID: moderator.ID,
				Reason:  "seeded example",
			}); err != nil {
				return created, fmt.Errorf("redact thread: %w", err)
			}
		}
	}
	return created, nil
}

func (s *Seeder) maybeReveal(ctx context.Context, kind models.ContentKind, id, authorID uint) {
	if s.rng.Float64() >= s.opts.RevealRate {
		return
	}
	if _, err := s.content.RevealIdentity(ctx, service.IdentityInput{Kind: kind, ItemID: id, ActorID: authorID}); err != nil {
		observability.Logger.WarnContext(ctx, "seed reveal failed", slog.String("error", err.Error()))
	}
}
