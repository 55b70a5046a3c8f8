package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/infrastructure/persistence/relational/model"
	"batchtrack/internal/ports"
)

type BatchRepository struct {
	db *gorm.DB
}

var _ ports.BatchRepository = (*BatchRepository)(nil)

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *BatchRepository) GetBatch(ctx context.Context, batchID string) (ports.BatchRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BatchRecord{}, err
	}
	return getBatch(db, batchID, false)
}

// LockBatch reads the batch with a row lock held until the transaction ends.
// SQLite has no row locks; its single writer connection serializes instead.
func (r *BatchRepository) LockBatch(ctx context.Context, batchID string) (ports.BatchRecord, error) {
	if ctx != nil && ports.TxFromContext(ctx) == nil {
		return ports.BatchRecord{}, errors.New("lock batch requires a transaction")
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.BatchRecord{}, err
	}
	return getBatch(db, batchID, true)
}

func getBatch(db *gorm.DB, batchID string, lock bool) (ports.BatchRecord, error) {
	query := db.Where("batch_id = ?", batchID)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row model.Batch
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BatchRecord{}, fmt.Errorf("%w: %s", ports.ErrBatchNotFound, batchID)
		}
		return ports.BatchRecord{}, errs.Wrap(err, "query batch")
	}

	staff, err := listStaff(db, []string{row.BatchID})
	if err != nil {
		return ports.BatchRecord{}, err
	}
	return mapBatch(row, staff[row.BatchID]), nil
}

func (r *BatchRepository) ListBatches(ctx context.Context, filter ports.BatchFilter) ([]ports.BatchRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Batch{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	}

	var rows []model.Batch
	if err := query.Order("last_updated desc").Order("batch_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query batches")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.BatchID)
	}
	staff, err := listStaff(db, ids)
	if err != nil {
		return nil, err
	}

	items := make([]ports.BatchRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapBatch(row, staff[row.BatchID]))
	}
	return items, nil
}

func (r *BatchRepository) GetSample(ctx context.Context, batchID string, sampleID string) (ports.SampleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.SampleRecord{}, err
	}

	var row model.Sample
	if err := db.Where("batch_id = ? AND sample_id = ?", batchID, sampleID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SampleRecord{}, fmt.Errorf("%w: %s in batch %s", ports.ErrSampleNotFound, sampleID, batchID)
		}
		return ports.SampleRecord{}, errs.Wrap(err, "query sample")
	}
	return mapSample(row), nil
}

func (r *BatchRepository) ListSamples(ctx context.Context, batchID string) ([]ports.SampleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Sample
	if err := db.
		Where("batch_id = ?", batchID).
		Order("attempt asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query samples")
	}

	items := make([]ports.SampleRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapSample(row))
	}
	return items, nil
}

func (r *BatchRepository) ListBatchEvents(ctx context.Context, batchID string) ([]ports.BatchEventRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.BatchEvent
	if err := db.
		Where("batch_id = ?", batchID).
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query batch events")
	}

	items := make([]ports.BatchEventRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.BatchEventRecord{
			EventID:    row.EventID,
			BatchID:    row.BatchID,
			SampleID:   row.SampleID,
			ActorID:    row.ActorID,
			Role:       row.Role,
			Action:     row.Action,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Notes:      row.Notes,
			CreatedAt:  row.CreatedAt,
		})
	}
	return items, nil
}

func (r *BatchRepository) CreateBatch(ctx context.Context, batch ports.BatchRecord) (ports.BatchRecord, error) {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return ports.BatchRecord{}, err
		}

		row := model.Batch{
			BatchID:            batch.BatchID,
			Formula:            batch.Formula,
			Deck:               batch.Deck,
			BatchNumber:        batch.BatchNumber,
			Status:             string(batch.Status),
			CurrentProcessorID: batch.CurrentProcessorID,
			QACurrentID:        batch.QACurrentID,
			SampleCount:        batch.SampleCount,
			StartedAt:          batch.StartedAt.UTC(),
			LastUpdated:        batch.LastUpdated.UTC(),
		}
		if err := db.Create(&row).Error; err != nil {
			return ports.BatchRecord{}, errs.Wrap(err, "insert batch")
		}

		for _, id := range batch.ProcessorHistory {
			if err := appendStaff(db, row.BatchID, ports.StaffProcessor, id); err != nil {
				return ports.BatchRecord{}, err
			}
		}
		for _, id := range batch.QAHistory {
			if err := appendStaff(db, row.BatchID, ports.StaffQA, id); err != nil {
				return ports.BatchRecord{}, err
			}
		}

		staff, err := listStaff(db, []string{row.BatchID})
		if err != nil {
			return ports.BatchRecord{}, err
		}
		return mapBatch(row, staff[row.BatchID]), nil
	}

	var created ports.BatchRecord
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		row, err := r.CreateBatch(txCtx, batch)
		if err != nil {
			return err
		}
		created = row
		return nil
	}); err != nil {
		return ports.BatchRecord{}, err
	}
	return created, nil
}

func (r *BatchRepository) UpdateBatch(ctx context.Context, batchID string, update ports.BatchUpdate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	values := map[string]any{
		"last_updated": update.LastUpdated.UTC(),
	}
	if update.Status != nil {
		values["status"] = string(*update.Status)
	}
	if update.CurrentProcessorID != nil {
		values["current_processor_id"] = *update.CurrentProcessorID
	}
	if update.QACurrentID != nil {
		values["qa_current_id"] = *update.QACurrentID
	}

	query := db.Model(&model.Batch{}).Where("batch_id = ?", batchID)
	if update.ExpectStatus != nil {
		query = query.Where("status = ?", string(*update.ExpectStatus))
	}
	result := query.Updates(values)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update batch")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if update.ExpectStatus == nil {
		return fmt.Errorf("update batch %s: no rows affected", batchID)
	}
	return fmt.Errorf("%w: batch %s moved from %s to %s", domainbatch.ErrInvalidState, batchID, *update.ExpectStatus, current.Status)
}

func (r *BatchRepository) ClaimBatch(ctx context.Context, batchID string, qaID string, at time.Time) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.Batch{}).
		Where("batch_id = ? AND status = ?", batchID, string(domainbatch.StatusAwaitingQA)).
		Where("(qa_current_id IS NULL OR qa_current_id = '')").
		Updates(map[string]any{
			"qa_current_id": qaID,
			"last_updated":  at.UTC(),
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "claim batch")
	}
	return result.RowsAffected == 1, nil
}

func (r *BatchRepository) ReserveAttempt(ctx context.Context, batchID string, statuses []domainbatch.Status) (int, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, false, err
	}

	result := db.Model(&model.Batch{}).
		Where("batch_id = ? AND status IN ?", batchID, statusStrings(statuses)).
		Update("sample_count", gorm.Expr("sample_count + ?", 1))
	if result.Error != nil {
		return 0, false, errs.Wrap(result.Error, "increment sample counter")
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}

	var row model.Batch
	if err := db.Select("sample_count").Where("batch_id = ?", batchID).Take(&row).Error; err != nil {
		return 0, false, errs.Wrap(err, "read sample counter")
	}
	return row.SampleCount, true, nil
}

func (r *BatchRepository) AppendStaff(ctx context.Context, batchID string, kind ports.StaffKind, actorID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	return appendStaff(db, batchID, kind, actorID)
}

func (r *BatchRepository) CreateSample(ctx context.Context, sample ports.SampleRecord) (ports.SampleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.SampleRecord{}, err
	}

	row := model.Sample{
		SampleID:    sample.SampleID,
		BatchID:     sample.BatchID,
		Attempt:     sample.Attempt,
		SubmitterID: sample.SubmitterID,
		QAID:        sample.QAID,
		Result:      string(sample.Result),
		Notes:       sample.Notes,
		SubmittedAt: sample.SubmittedAt.UTC(),
		DecidedAt:   sample.DecidedAt,
	}
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return ports.SampleRecord{}, errs.Wrap(err, "insert sample")
	}
	return mapSample(row), nil
}

func (r *BatchRepository) DecideSample(ctx context.Context, batchID string, sampleID string, decision ports.SampleDecision) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.Sample{}).
		Where("batch_id = ? AND sample_id = ? AND result = ?", batchID, sampleID, string(domainbatch.ResultPending)).
		Updates(map[string]any{
			"qa_id":      decision.QAID,
			"result":     string(decision.Result),
			"notes":      decision.Notes,
			"decided_at": decision.DecidedAt.UTC(),
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "record sample decision")
	}
	return result.RowsAffected == 1, nil
}

func (r *BatchRepository) AppendEvent(ctx context.Context, input ports.BatchEventCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.BatchEvent{
		BatchID:    input.BatchID,
		SampleID:   input.SampleID,
		ActorID:    input.ActorID,
		Role:       input.Role,
		Action:     input.Action,
		FromStatus: input.FromStatus,
		ToStatus:   input.ToStatus,
		Notes:      input.Notes,
		CreatedAt:  input.CreatedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert batch event")
	}
	return nil
}

func appendStaff(db *gorm.DB, batchID string, kind ports.StaffKind, actorID string) error {
	if actorID == "" {
		return nil
	}

	row := model.BatchStaff{
		BatchID: batchID,
		Kind:    string(kind),
		ActorID: actorID,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "insert %s history", kind)
	}
	return nil
}

type staffHistory struct {
	processors []string
	qa         []string
}

func listStaff(db *gorm.DB, batchIDs []string) (map[string]staffHistory, error) {
	var rows []model.BatchStaff
	if err := db.
		Where("batch_id IN ?", batchIDs).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query batch staff")
	}

	out := make(map[string]staffHistory, len(batchIDs))
	for _, row := range rows {
		h := out[row.BatchID]
		switch ports.StaffKind(row.Kind) {
		case ports.StaffProcessor:
			h.processors = append(h.processors, row.ActorID)
		case ports.StaffQA:
			h.qa = append(h.qa, row.ActorID)
		}
		out[row.BatchID] = h
	}
	return out, nil
}

func statusStrings(statuses []domainbatch.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func mapBatch(row model.Batch, staff staffHistory) ports.BatchRecord {
	var qaCurrent *string
	if row.QACurrentID != nil && *row.QACurrentID != "" {
		v := *row.QACurrentID
		qaCurrent = &v
	}
	return ports.BatchRecord{
		BatchID:            row.BatchID,
		Formula:            row.Formula,
		Deck:               row.Deck,
		BatchNumber:        row.BatchNumber,
		Status:             domainbatch.Status(row.Status),
		CurrentProcessorID: row.CurrentProcessorID,
		QACurrentID:        qaCurrent,
		ProcessorHistory:   staff.processors,
		QAHistory:          staff.qa,
		SampleCount:        row.SampleCount,
		StartedAt:          row.StartedAt.UTC(),
		LastUpdated:        row.LastUpdated.UTC(),
	}
}

func mapSample(row model.Sample) ports.SampleRecord {
	var decidedAt *time.Time
	if row.DecidedAt != nil {
		v := row.DecidedAt.UTC()
		decidedAt = &v
	}
	return ports.SampleRecord{
		SampleID:    row.SampleID,
		BatchID:     row.BatchID,
		Attempt:     row.Attempt,
		SubmitterID: row.SubmitterID,
		QAID:        row.QAID,
		Result:      domainbatch.SampleResult(row.Result),
		Notes:       row.Notes,
		SubmittedAt: row.SubmittedAt.UTC(),
		DecidedAt:   decidedAt,
	}
}
