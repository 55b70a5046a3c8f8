package batch

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeNewBatch(t *testing.T) {
	got, err := NormalizeNewBatch(NewBatch{
		Formula:     " vf12a ",
		Deck:        "Deck 84 -- Clear",
		BatchNumber: " 0042 ",
		ProcessorID: "p1",
	})
	if err != nil {
		t.Fatalf("NormalizeNewBatch() error = %v", err)
	}
	if got.Formula != "VF12A" || got.BatchNumber != "0042" {
		t.Fatalf("NormalizeNewBatch() = %+v", got)
	}
}

func TestNormalizeNewBatchNamesMissingField(t *testing.T) {
	valid := NewBatch{Formula: "VF1", Deck: Decks[1], BatchNumber: "7", ProcessorID: "p1"}

	testCases := []struct {
		name  string
		edit  func(*NewBatch)
		field string
	}{
		{"processor", func(b *NewBatch) { b.ProcessorID = " " }, "processor_id"},
		{"formula", func(b *NewBatch) { b.Formula = "" }, "formula"},
		{"formula chars", func(b *NewBatch) { b.Formula = "VF-1" }, "formula"},
		{"deck", func(b *NewBatch) { b.Deck = "" }, "deck"},
		{"unknown deck", func(b *NewBatch) { b.Deck = "Deck 99" }, "deck"},
		{"batch number", func(b *NewBatch) { b.BatchNumber = "" }, "batch_number"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.edit(&in)
			_, err := NormalizeNewBatch(in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("NormalizeNewBatch() error = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("errors.Is(ErrValidation) = false")
			}
		})
	}
}

func TestActorNormalize(t *testing.T) {
	got, err := Actor{ID: " q1 ", Role: "QA"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ID != "q1" || got.Role != RoleQA {
		t.Fatalf("Normalize() = %+v", got)
	}

	if _, err := (Actor{ID: "", Role: RoleQA}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Normalize(empty id) error = %v", err)
	}
	if _, err := (Actor{ID: "x", Role: "operator"}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Normalize(bad role) error = %v", err)
	}
}

func TestAppendUniqueKeepsOrder(t *testing.T) {
	history := AppendUnique(nil, "p1")
	history = AppendUnique(history, "p2")
	history = AppendUnique(history, "p1")
	history = AppendUnique(history, "")

	if len(history) != 2 || history[0] != "p1" || history[1] != "p2" {
		t.Fatalf("AppendUnique() = %#v", history)
	}
}

func TestVisibilityWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sixDays := now.Add(-6 * 24 * time.Hour)
	eightDays := now.Add(-8 * 24 * time.Hour)

	if !IsActive(StatusApproved, sixDays, now) || IsArchived(StatusApproved, sixDays, now) {
		t.Fatalf("approved 6 days ago should be active only")
	}
	if IsActive(StatusApproved, eightDays, now) || !IsArchived(StatusApproved, eightDays, now) {
		t.Fatalf("approved 8 days ago should be archived only")
	}

	for _, status := range []Status{StatusMixing, StatusAwaitingQA, StatusOnHold} {
		if !IsActive(status, eightDays, now) {
			t.Fatalf("%s should be active regardless of age", status)
		}
		if IsArchived(status, eightDays, now) {
			t.Fatalf("%s should never be archived", status)
		}
	}

	if IsActive(StatusRejected, now, now) || !IsArchived(StatusRejected, now, now) {
		t.Fatalf("rejected batches belong to the archive immediately")
	}

	if !Visible(ViewQAQueue, StatusAwaitingQA, eightDays, now) || Visible(ViewQAQueue, StatusOnHold, now, now) {
		t.Fatalf("qa queue holds awaitingQA batches only")
	}
}
