package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
)

func TestRootRegistersCommands(t *testing.T) {
	for _, path := range [][]string{
		{"init-db"},
		{"batch", "create"},
		{"batch", "show"},
		{"batch", "list"},
		{"sample", "submit"},
		{"sample", "decide"},
		{"sample", "list"},
		{"qa", "claim"},
		{"qa", "hold"},
		{"qa", "reject"},
		{"admin", "reassign"},
		{"admin", "purge-keys"},
		{"watch"},
		{"serve"},
		{"console", "board"},
	} {
		found, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("Find(%v) error = %v", path, err)
		}
		if found.Name() != path[len(path)-1] {
			t.Fatalf("Find(%v) = %q", path, found.Name())
		}
	}
}

func TestSampleDecideFlags(t *testing.T) {
	if err := sampleDecideCmd.ParseFlags([]string{
		"--batch", "b-1",
		"--sample", "s-1",
		"--result", "denied",
		"--notes", "grainy",
		"--request-key", "retry-1",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	for flag, want := range map[string]string{
		"batch":       "b-1",
		"sample":      "s-1",
		"result":      "denied",
		"notes":       "grainy",
		"request-key": "retry-1",
	} {
		got, _ := sampleDecideCmd.Flags().GetString(flag)
		if got != want {
			t.Fatalf("%s = %q, want %q", flag, got, want)
		}
	}
}

func TestBatchListDefaultsToActiveView(t *testing.T) {
	view, _ := batchListCmd.Flags().GetString("view")
	if view != string(domainbatch.ViewActive) {
		t.Fatalf("view = %q, want %q", view, domainbatch.ViewActive)
	}
}

func TestCurrentActorFromPersistentFlags(t *testing.T) {
	if err := rootCmd.PersistentFlags().Parse([]string{"--actor", "Q1", "--role", "qa"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	t.Cleanup(func() {
		actorID = ""
		actorRole = ""
	})

	actor := currentActor()
	if actor.ID != "Q1" || actor.Role != domainbatch.RoleQA {
		t.Fatalf("currentActor() = %+v, want Q1/qa", actor)
	}
}

func TestCommandContextTagsActor(t *testing.T) {
	prevID, prevRole := actorID, actorRole
	t.Cleanup(func() { actorID, actorRole = prevID, prevRole })
	actorID, actorRole = "Q1", "qa"

	var buf bytes.Buffer
	logger, err := logging.NewLogger(&buf, "info", "json")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := commandContext(context.Background(), logger)
	logging.Info(ctx, "claimed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["actor_id"] != "Q1" || line["role"] != "qa" {
		t.Fatalf("log line = %v, want actor_id Q1 role qa", line)
	}
}
