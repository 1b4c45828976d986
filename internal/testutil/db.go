// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"lionboard/internal/database"
	"lionboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens an isolated in-memory database with the full schema.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:lionboard_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db), "migrate sqlite")
	return db
}

// CreateUser inserts a user with the given role and fake profile data.
func CreateUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: gofakeit.Username(),
		Email:    fmt.Sprintf("%d.%s", dbSeq.Add(1), gofakeit.Email()),
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateThread inserts a visible thread owned by author.
func CreateThread(t *testing.T, db *gorm.DB, author *models.User, title, body string) *models.Thread {
	t.Helper()
	thread := &models.Thread{UserID: author.ID, Title: title, Body: body}
	require.NoError(t, db.Create(thread).Error)
	return thread
}

// CreateAnswer inserts a visible answer on thread.
func CreateAnswer(t *testing.T, db *gorm.DB, thread *models.Thread, author *models.User, body string) *models.Answer {
	t.Helper()
	answer := &models.Answer{ThreadID: thread.ID, UserID: author.ID, Body: body}
	require.NoError(t, db.Create(answer).Error)
	return answer
}
