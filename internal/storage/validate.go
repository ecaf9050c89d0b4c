package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError reports a field constraint violation. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// validateDecision checks all field constraints on a fully assembled
// record. Length limits count runes, not bytes, and violations are
// rejected rather than truncated.
func validateDecision(d Decision) error {
	if strings.TrimSpace(d.Question) == "" {
		return validationErr("question", "Please provide a decision question")
	}
	if utf8.RuneCountInString(d.Question) > MaxQuestionRunes {
		return validationErr("question", fmt.Sprintf("Question cannot be more than %d characters", MaxQuestionRunes))
	}
	if utf8.RuneCountInString(d.Notes) > MaxNotesRunes {
		return validationErr("notes", fmt.Sprintf("Notes cannot be more than %d characters", MaxNotesRunes))
	}
	if d.TimeSpent < 0 || d.TimeSpent > MaxTimeSpent {
		return validationErr("timeSpent", fmt.Sprintf("Time spent must be between 0 and %d seconds", MaxTimeSpent))
	}
	switch d.FinalDecision {
	case "", DecisionYes, DecisionNo, DecisionUndecided:
	default:
		return validationErr("finalDecision", "Final decision must be one of yes, no or undecided")
	}
	if err := validateItems("pros", d.Pros); err != nil {
		return err
	}
	return validateItems("cons", d.Cons)
}

func validateItems(field string, items []ListItem) error {
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			return validationErr(field, "List items must have non-empty text")
		}
	}
	return nil
}
