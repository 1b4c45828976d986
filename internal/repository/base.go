// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"

	"lionboard/internal/database"
	"lionboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock on Postgres. SQLite serializes writers per
// transaction, so no clause is needed there.
func forUpdate(db *gorm.DB) *gorm.DB {
	if database.IsPostgres(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// notFoundOr maps gorm.ErrRecordNotFound to a typed NotFoundError.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

var redactionColumns = []string{
	"body", "redaction_state", "redacted_body", "redacted_by_id", "redacted_reason", "updated_at",
}
