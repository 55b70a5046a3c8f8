package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/infrastructure/persistence/relational/model"
	"batchtrack/internal/ports"
)

func setupBatchRepository(t *testing.T) (*BatchRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "batches.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewBatchRepository(db), db
}

func seedBatch(t *testing.T, repo *BatchRepository, id string, status domainbatch.Status, at time.Time) ports.BatchRecord {
	t.Helper()

	created, err := repo.CreateBatch(context.Background(), ports.BatchRecord{
		BatchID:            id,
		Formula:            "F1",
		Deck:               "Deck 84 -- Clear",
		BatchNumber:        "1",
		Status:             status,
		CurrentProcessorID: "P1",
		ProcessorHistory:   []string{"P1"},
		StartedAt:          at,
		LastUpdated:        at,
	})
	if err != nil {
		t.Fatalf("CreateBatch(%s) error = %v", id, err)
	}
	return created
}

func TestCreateAndGetBatch(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	created := seedBatch(t, repo, "B1", domainbatch.StatusMixing, now)
	if len(created.ProcessorHistory) != 1 || created.ProcessorHistory[0] != "P1" {
		t.Fatalf("CreateBatch() processor history = %v", created.ProcessorHistory)
	}

	got, err := repo.GetBatch(ctx, "B1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.Status != domainbatch.StatusMixing {
		t.Fatalf("GetBatch() status = %q", got.Status)
	}
	if got.QACurrentID != nil {
		t.Fatalf("GetBatch() qa current = %v, want nil", *got.QACurrentID)
	}
	if !got.LastUpdated.Equal(now) {
		t.Fatalf("GetBatch() last updated = %v, want %v", got.LastUpdated, now)
	}

	if _, err := repo.GetBatch(ctx, "missing"); !errors.Is(err, ports.ErrBatchNotFound) {
		t.Fatalf("GetBatch(missing) error = %v, want ErrBatchNotFound", err)
	}
}

func TestListBatchesFiltersByStatus(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusMixing, base)
	seedBatch(t, repo, "B2", domainbatch.StatusAwaitingQA, base.Add(time.Minute))
	seedBatch(t, repo, "B3", domainbatch.StatusRejected, base.Add(2*time.Minute))

	items, err := repo.ListBatches(ctx, ports.BatchFilter{
		Statuses: []domainbatch.Status{domainbatch.StatusMixing, domainbatch.StatusAwaitingQA},
	})
	if err != nil {
		t.Fatalf("ListBatches() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListBatches() len = %d, want 2", len(items))
	}
	if items[0].BatchID != "B2" || items[1].BatchID != "B1" {
		t.Fatalf("ListBatches() order = %s,%s, want B2,B1", items[0].BatchID, items[1].BatchID)
	}

	all, err := repo.ListBatches(ctx, ports.BatchFilter{})
	if err != nil {
		t.Fatalf("ListBatches(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListBatches(all) len = %d, want 3", len(all))
	}
}

func TestClaimBatchOnlyOnce(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusAwaitingQA, now)
	seedBatch(t, repo, "B2", domainbatch.StatusMixing, now)

	ok, err := repo.ClaimBatch(ctx, "B1", "Q1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if !ok {
		t.Fatalf("ClaimBatch() first claim should succeed")
	}

	ok, err = repo.ClaimBatch(ctx, "B1", "Q2", now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ClaimBatch(second) error = %v", err)
	}
	if ok {
		t.Fatalf("ClaimBatch(second) should not overwrite the claimant")
	}

	got, err := repo.GetBatch(ctx, "B1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.QACurrentID == nil || *got.QACurrentID != "Q1" {
		t.Fatalf("GetBatch() qa current = %v, want Q1", got.QACurrentID)
	}

	ok, err = repo.ClaimBatch(ctx, "B2", "Q1", now)
	if err != nil {
		t.Fatalf("ClaimBatch(mixing) error = %v", err)
	}
	if ok {
		t.Fatalf("ClaimBatch(mixing) should not succeed")
	}
}

func TestReserveAttemptIncrementsCounter(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusMixing, now)
	allowed := []domainbatch.Status{domainbatch.StatusMixing, domainbatch.StatusAwaitingQA}

	for want := 1; want <= 3; want++ {
		got, ok, err := repo.ReserveAttempt(ctx, "B1", allowed)
		if err != nil {
			t.Fatalf("ReserveAttempt() error = %v", err)
		}
		if !ok || got != want {
			t.Fatalf("ReserveAttempt() = %d,%v, want %d,true", got, ok, want)
		}
	}

	_, ok, err := repo.ReserveAttempt(ctx, "B1", []domainbatch.Status{domainbatch.StatusOnHold})
	if err != nil {
		t.Fatalf("ReserveAttempt(onHold) error = %v", err)
	}
	if ok {
		t.Fatalf("ReserveAttempt(onHold) should not match a mixing batch")
	}
}

func TestSampleDecisionIsSingleShot(t *testing.T) {
	repo, db := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusAwaitingQA, now)
	if _, err := repo.CreateSample(ctx, ports.SampleRecord{
		SampleID:    "S1",
		BatchID:     "B1",
		Attempt:     1,
		SubmitterID: "P1",
		Result:      domainbatch.ResultPending,
		SubmittedAt: now,
	}); err != nil {
		t.Fatalf("CreateSample() error = %v", err)
	}

	ok, err := repo.DecideSample(ctx, "B1", "S1", ports.SampleDecision{
		QAID:      "Q1",
		Result:    domainbatch.ResultDenied,
		Notes:     "too thin",
		DecidedAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("DecideSample() error = %v", err)
	}
	if !ok {
		t.Fatalf("DecideSample() should succeed on a pending sample")
	}

	ok, err = repo.DecideSample(ctx, "B1", "S1", ports.SampleDecision{
		QAID:      "Q2",
		Result:    domainbatch.ResultApproved,
		DecidedAt: now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("DecideSample(second) error = %v", err)
	}
	if ok {
		t.Fatalf("DecideSample(second) should not overwrite a decided sample")
	}

	sample, err := repo.GetSample(ctx, "B1", "S1")
	if err != nil {
		t.Fatalf("GetSample() error = %v", err)
	}
	if sample.Result != domainbatch.ResultDenied || sample.Notes != "too thin" {
		t.Fatalf("GetSample() = %+v", sample)
	}
	if sample.QAID == nil || *sample.QAID != "Q1" || sample.DecidedAt == nil {
		t.Fatalf("GetSample() decision fields = %+v", sample)
	}

	if _, err := repo.GetSample(ctx, "B1", "S9"); !errors.Is(err, ports.ErrSampleNotFound) {
		t.Fatalf("GetSample(missing) error = %v, want ErrSampleNotFound", err)
	}

	dup := model.Sample{SampleID: "S2", BatchID: "B1", Attempt: 1, SubmitterID: "P1", Result: "pending", SubmittedAt: now}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("duplicate attempt number should violate the unique index")
	}
}

func TestAppendStaffKeepsFirstSeenOrder(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusAwaitingQA, now)
	for _, id := range []string{"Q1", "Q2", "Q1"} {
		if err := repo.AppendStaff(ctx, "B1", ports.StaffQA, id); err != nil {
			t.Fatalf("AppendStaff(%s) error = %v", id, err)
		}
	}
	if err := repo.AppendStaff(ctx, "B1", ports.StaffProcessor, "P2"); err != nil {
		t.Fatalf("AppendStaff(P2) error = %v", err)
	}

	got, err := repo.GetBatch(ctx, "B1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if len(got.QAHistory) != 2 || got.QAHistory[0] != "Q1" || got.QAHistory[1] != "Q2" {
		t.Fatalf("QAHistory = %v, want [Q1 Q2]", got.QAHistory)
	}
	if len(got.ProcessorHistory) != 2 || got.ProcessorHistory[1] != "P2" {
		t.Fatalf("ProcessorHistory = %v, want [P1 P2]", got.ProcessorHistory)
	}
}

func TestUpdateBatchAndEvents(t *testing.T) {
	repo, _ := setupBatchRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedBatch(t, repo, "B1", domainbatch.StatusAwaitingQA, now)

	status := domainbatch.StatusOnHold
	if err := repo.UpdateBatch(ctx, "B1", ports.BatchUpdate{Status: &status, LastUpdated: now.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateBatch() error = %v", err)
	}
	if err := repo.UpdateBatch(ctx, "missing", ports.BatchUpdate{Status: &status, LastUpdated: now}); !errors.Is(err, ports.ErrBatchNotFound) {
		t.Fatalf("UpdateBatch(missing) error = %v, want ErrBatchNotFound", err)
	}

	stale := domainbatch.StatusAwaitingQA
	rejected := domainbatch.StatusRejected
	err := repo.UpdateBatch(ctx, "B1", ports.BatchUpdate{ExpectStatus: &stale, Status: &rejected, LastUpdated: now})
	if !errors.Is(err, domainbatch.ErrInvalidState) {
		t.Fatalf("UpdateBatch(stale) error = %v, want ErrInvalidState", err)
	}

	for _, action := range []string{"create", "hold"} {
		if err := repo.AppendEvent(ctx, ports.BatchEventCreate{
			BatchID:   "B1",
			ActorID:   "Q1",
			Role:      "qa",
			Action:    action,
			ToStatus:  string(status),
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", action, err)
		}
	}

	got, err := repo.GetBatch(ctx, "B1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.Status != domainbatch.StatusOnHold || !got.LastUpdated.Equal(now.Add(time.Hour)) {
		t.Fatalf("GetBatch() = %+v", got)
	}

	events, err := repo.ListBatchEvents(ctx, "B1")
	if err != nil {
		t.Fatalf("ListBatchEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Action != "create" || events[1].Action != "hold" {
		t.Fatalf("ListBatchEvents() = %+v", events)
	}
}

func TestCreateBatchJoinsCallerTransaction(t *testing.T) {
	repo, db := setupBatchRepository(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rollback := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(context.Background(), tx)
		if _, err := repo.CreateBatch(txCtx, ports.BatchRecord{
			BatchID:            "B1",
			Formula:            "F1",
			Deck:               "Deck 84 -- Clear",
			BatchNumber:        "1",
			Status:             domainbatch.StatusMixing,
			CurrentProcessorID: "P1",
			ProcessorHistory:   []string{"P1"},
			StartedAt:          now,
			LastUpdated:        now,
		}); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("Transaction() error = %v, want rollback", err)
	}

	if _, err := repo.GetBatch(context.Background(), "B1"); !errors.Is(err, ports.ErrBatchNotFound) {
		t.Fatalf("GetBatch() after rollback error = %v, want ErrBatchNotFound", err)
	}
}

func TestLockBatchRequiresTransaction(t *testing.T) {
	repo, db := setupBatchRepository(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedBatch(t, repo, "B1", domainbatch.StatusAwaitingQA, now)

	if _, err := repo.LockBatch(context.Background(), "B1"); err == nil {
		t.Fatalf("LockBatch() outside transaction error = nil")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(context.Background(), tx)
		got, err := repo.LockBatch(txCtx, "B1")
		if err != nil {
			return err
		}
		if got.Status != domainbatch.StatusAwaitingQA || len(got.ProcessorHistory) != 1 {
			t.Fatalf("LockBatch() = %+v", got)
		}
		if _, err := repo.LockBatch(txCtx, "missing"); !errors.Is(err, ports.ErrBatchNotFound) {
			t.Fatalf("LockBatch(missing) error = %v, want ErrBatchNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
}
