package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDecision_RuneCounting(t *testing.T) {
	// 200 multi-byte runes must pass: the limit counts characters, not bytes.
	q := strings.Repeat("é", MaxQuestionRunes)
	if err := validateDecision(Decision{Question: q, Pros: []ListItem{}, Cons: []ListItem{}}); err != nil {
		t.Errorf("200-rune multibyte question rejected: %v", err)
	}

	q = strings.Repeat("é", MaxQuestionRunes+1)
	err := validateDecision(Decision{Question: q})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "question" {
		t.Errorf("error = %v, want ValidationError on question", err)
	}
}

func TestValidateDecision_FinalDecisionSet(t *testing.T) {
	for _, fd := range []string{"", DecisionYes, DecisionNo, DecisionUndecided} {
		d := Decision{Question: "q", FinalDecision: fd}
		if err := validateDecision(d); err != nil {
			t.Errorf("finalDecision %q rejected: %v", fd, err)
		}
	}

	d := Decision{Question: "q", FinalDecision: "YES"}
	if err := validateDecision(d); err == nil {
		t.Error("finalDecision is case-sensitive; \"YES\" should be rejected")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := validateDecision(Decision{Question: ""})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if ve.Message != "Please provide a decision question" {
		t.Errorf("message = %q", ve.Message)
	}
	if !strings.Contains(ve.Error(), "question") {
		t.Errorf("Error() = %q, want field name included", ve.Error())
	}
}
