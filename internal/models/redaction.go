package models

import "strings"

// RedactionState is the visibility state of a redactable content item.
type RedactionState string

const (
	RedactionVisible  RedactionState = "visible"
	RedactionPartial  RedactionState = "partial"
	RedactionRedacted RedactionState = "redacted"
)

// Placeholder bodies shown while an item is hidden.
const (
	RedactedPlaceholder = "[Content removed by moderators for policy violations]"
	PartialPlaceholder  = "[Portions of this content have been redacted by moderators]"
)

// DefaultRedactionReason is used when a moderator gives no reason.
const DefaultRedactionReason = "policy_violation"

// ParseRedactionTarget validates a requested target state for a redact
// action. An empty value selects RedactionRedacted.
func ParseRedactionTarget(raw string) (RedactionState, error) {
	switch RedactionState(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RedactionRedacted:
		return RedactionRedacted, nil
	case RedactionPartial:
		return RedactionPartial, nil
	default:
		return "", NewValidationError("invalid redaction state")
	}
}

// Hidden reports whether the state hides the original body.
func (s RedactionState) Hidden() bool {
	switch s {
	case RedactionPartial, RedactionRedacted:
		return true
	default:
		return false
	}
}

// Placeholder returns the text displayed for a hidden state.
func (s RedactionState) Placeholder() string {
	switch s {
	case RedactionRedacted:
		return RedactedPlaceholder
	case RedactionPartial:
		return PartialPlaceholder
	default:
		return ""
	}
}

// Redaction holds the moderation fields shared by threads and answers.
// RedactedBody is the single preserved copy of the original text; it is
// written only on the visible -> hidden transition.
type Redaction struct {
	RedactionState RedactionState `gorm:"type:varchar(16);not null;default:visible;index" json:"redaction_state"`
	RedactedBody   *string        `gorm:"type:text" json:"-"`
	RedactedByID   *uint          `gorm:"index" json:"redacted_by_id,omitempty"`
	RedactedReason *string        `json:"redacted_reason,omitempty"`
}

// Visible reports whether the item shows its own body.
func (r *Redaction) Visible() bool {
	return !r.State().Hidden()
}

// State normalizes the zero value to visible.
func (r *Redaction) State() RedactionState {
	if r.RedactionState == "" {
		return RedactionVisible
	}
	return r.RedactionState
}

// Hide moves the item into a hidden state. body points at the item's
// displayed text and is replaced by the placeholder. The original is copied
// aside only when leaving the visible state, so repeated redactions keep the
// first copy.
func (r *Redaction) Hide(body *string, target RedactionState, moderatorID uint, reason string) error {
	if !target.Hidden() {
		return NewValidationError("invalid redaction state")
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRedactionReason
	}

	switch r.State() {
	case RedactionVisible:
		original := *body
		r.RedactedBody = &original
	case RedactionPartial, RedactionRedacted:
		// keep the stored original
	}

	r.RedactionState = target
	r.RedactedByID = &moderatorID
	r.RedactedReason = &reason
	*body = target.Placeholder()
	return nil
}

// Restore returns a hidden item to visible and clears every moderation field.
func (r *Redaction) Restore(body *string) error {
	switch r.State() {
	case RedactionVisible:
		return NewInvalidStateError("not redacted")
	case RedactionPartial, RedactionRedacted:
	}

	if r.RedactedBody != nil && strings.TrimSpace(*r.RedactedBody) != "" {
		*body = *r.RedactedBody
	}
	r.RedactionState = RedactionVisible
	r.RedactedBody = nil
	r.RedactedByID = nil
	r.RedactedReason = nil
	return nil
}
