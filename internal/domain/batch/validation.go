package batch

import (
	"fmt"
	"regexp"
	"strings"
)

// Decks is the fixed set of mixing decks a batch may run on.
var Decks = []string{
	"Deck 84 -- Clear",
	"Deck 85 -- Creamy",
}

var formulaPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

type NewBatch struct {
	Formula     string
	Deck        string
	BatchNumber string
	ProcessorID string
}

// NormalizeNewBatch validates creation input and returns the stored form.
func NormalizeNewBatch(in NewBatch) (NewBatch, error) {
	out := NewBatch{
		Formula:     strings.TrimSpace(in.Formula),
		Deck:        strings.TrimSpace(in.Deck),
		BatchNumber: strings.TrimSpace(in.BatchNumber),
		ProcessorID: strings.TrimSpace(in.ProcessorID),
	}

	if out.ProcessorID == "" {
		return NewBatch{}, required("processor_id")
	}
	if out.Formula == "" {
		return NewBatch{}, required("formula")
	}
	if !formulaPattern.MatchString(out.Formula) {
		return NewBatch{}, &ValidationError{Field: "formula", Reason: "must contain only letters and numbers"}
	}
	if out.Deck == "" {
		return NewBatch{}, required("deck")
	}
	if !IsKnownDeck(out.Deck) {
		return NewBatch{}, &ValidationError{Field: "deck", Reason: fmt.Sprintf("unknown deck %q", out.Deck)}
	}
	if out.BatchNumber == "" {
		return NewBatch{}, required("batch_number")
	}

	out.Formula = strings.ToUpper(out.Formula)
	return out, nil
}

func IsKnownDeck(deck string) bool {
	for _, d := range Decks {
		if d == deck {
			return true
		}
	}
	return false
}

// RequireID trims id and fails with a ValidationError naming field when empty.
func RequireID(field string, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", required(field)
	}
	return trimmed, nil
}

// AppendUnique appends id to an ordered history set unless already present.
func AppendUnique(history []string, id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return history
	}
	for _, existing := range history {
		if existing == id {
			return history
		}
	}
	return append(history, id)
}
