package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentKind(t *testing.T) {
	tests := []struct {
		raw     string
		want    ContentKind
		wantErr bool
	}{
		{"thread", ContentThread, false},
		{"Threads", ContentThread, false},
		{"post", ContentThread, false},
		{" answers ", ContentAnswer, false},
		{"comment", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseContentKind(tt.raw)
			if tt.wantErr {
				assert.True(t, HasCode(err, CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRedactionTarget(t *testing.T) {
	got, err := ParseRedactionTarget("")
	require.NoError(t, err)
	assert.Equal(t, RedactionRedacted, got)

	got, err = ParseRedactionTarget("PARTIAL")
	require.NoError(t, err)
	assert.Equal(t, RedactionPartial, got)

	_, err = ParseRedactionTarget("visible")
	assert.True(t, HasCode(err, CodeValidation))
}

func TestRedaction_HideAndRestore(t *testing.T) {
	thread := &Thread{ID: 1, UserID: 2, Body: "Hello"}
	assert.Equal(t, RedactionVisible, thread.State())

	require.NoError(t, thread.Redact(RedactionPartial, 9, ""))
	assert.Equal(t, PartialPlaceholder, thread.Body)
	assert.Equal(t, "Hello", *thread.RedactedBody)
	assert.Equal(t, DefaultRedactionReason, *thread.RedactedReason)
	assert.Equal(t, uint(9), *thread.RedactedByID)

	require.NoError(t, thread.Redact(RedactionRedacted, 10, "abuse"))
	assert.Equal(t, RedactedPlaceholder, thread.Body)
	assert.Equal(t, "Hello", *thread.RedactedBody, "the first preserved copy wins")
	assert.Equal(t, uint(10), *thread.RedactedByID)

	require.NoError(t, thread.Unredact())
	assert.Equal(t, "Hello", thread.Body)
	assert.True(t, thread.Visible())
	assert.Nil(t, thread.RedactedBody)
	assert.Nil(t, thread.RedactedByID)
	assert.Nil(t, thread.RedactedReason)

	err := thread.Unredact()
	assert.True(t, HasCode(err, CodeInvalidState))
	assert.Equal(t, "Hello", thread.Body)
}

func TestRedaction_RejectsVisibleTarget(t *testing.T) {
	answer := &Answer{ID: 3, ThreadID: 1, Body: "text"}
	err := answer.Redact(RedactionVisible, 1, "x")
	assert.True(t, HasCode(err, CodeValidation))
	assert.Equal(t, "text", answer.Body)
	assert.Nil(t, answer.RedactedBody)
}

func TestRedaction_RestoreWithoutCopyKeepsPlaceholder(t *testing.T) {
	answer := &Answer{Body: RedactedPlaceholder}
	answer.RedactionState = RedactionRedacted

	require.NoError(t, answer.Unredact())
	assert.Equal(t, RedactedPlaceholder, answer.Body)
	assert.Equal(t, RedactionVisible, answer.State())
}

func TestRedactableTargets(t *testing.T) {
	items := []Redactable{
		&Thread{ID: 4, UserID: 1},
		&Answer{ID: 5, ThreadID: 4, UserID: 2},
	}
	assert.Equal(t, ThreadTarget(4), items[0].Target())
	assert.Equal(t, uint(4), items[0].ParentThreadID())
	assert.Equal(t, AnswerTarget(5), items[1].Target())
	assert.Equal(t, uint(4), items[1].ParentThreadID())
	assert.Equal(t, uint(2), items[1].AuthorID())
	assert.Equal(t, "answer:5", items[1].Target().String())
}

func TestAuditActionsPerKind(t *testing.T) {
	assert.Equal(t, ActionPostRedacted, RedactedAction(ContentThread))
	assert.Equal(t, ActionAnswerRedacted, RedactedAction(ContentAnswer))
	assert.Equal(t, ActionPostUnredacted, UnredactedAction(ContentThread))
	assert.Equal(t, ActionAnswerUnredacted, UnredactedAction(ContentAnswer))
	assert.True(t, ActionIdentityHidden.Valid())
	assert.False(t, AuditAction("post_deleted").Valid())
}

func TestUserCanModerate(t *testing.T) {
	for role, want := range map[Role]bool{
		RoleStudent:   false,
		RoleModerator: true,
		RoleStaff:     true,
		RoleAdmin:     true,
	} {
		assert.Equal(t, want, (&User{Role: role}).CanModerate(), role)
	}
	assert.False(t, Role("root").Valid())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewMissingFieldError("title"), fiber.StatusBadRequest},
		{NewUnauthorizedError("no"), fiber.StatusForbidden},
		{NewInvalidStateError("not redacted"), fiber.StatusConflict},
		{NewNotFoundError("Thread", 1), fiber.StatusNotFound},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("Answer", 2)), fiber.StatusNotFound},
		{NewInternalError(errors.New("db")), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
	assert.Equal(t, "Thread with ID 1 not found", NewNotFoundError("Thread", 1).Error())
}
