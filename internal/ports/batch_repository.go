package ports

import (
	"context"
	"time"

	domainbatch "batchtrack/internal/domain/batch"
)

var (
	ErrBatchNotFound  = domainbatch.ErrBatchNotFound
	ErrSampleNotFound = domainbatch.ErrSampleNotFound
)

type StaffKind string

const (
	StaffProcessor StaffKind = "processor"
	StaffQA        StaffKind = "qa"
)

type BatchRecord struct {
	BatchID            string
	Formula            string
	Deck               string
	BatchNumber        string
	Status             domainbatch.Status
	CurrentProcessorID string
	QACurrentID        *string
	ProcessorHistory   []string
	QAHistory          []string
	SampleCount        int
	StartedAt          time.Time
	LastUpdated        time.Time
}

type SampleRecord struct {
	SampleID    string
	BatchID     string
	Attempt     int
	SubmitterID string
	QAID        *string
	Result      domainbatch.SampleResult
	Notes       string
	SubmittedAt time.Time
	DecidedAt   *time.Time
}

type BatchEventRecord struct {
	EventID    uint64
	BatchID    string
	SampleID   string
	ActorID    string
	Role       string
	Action     string
	FromStatus string
	ToStatus   string
	Notes      string
	CreatedAt  time.Time
}

type BatchEventCreate struct {
	BatchID    string
	SampleID   string
	ActorID    string
	Role       string
	Action     string
	FromStatus string
	ToStatus   string
	Notes      string
	CreatedAt  time.Time
}

type BatchFilter struct {
	Statuses []domainbatch.Status
}

// BatchUpdate carries optional column changes; nil fields are left alone.
// When ExpectStatus is set the update applies only while the batch still has
// that status, otherwise it fails with ErrInvalidState.
type BatchUpdate struct {
	ExpectStatus       *domainbatch.Status
	Status             *domainbatch.Status
	CurrentProcessorID *string
	QACurrentID        *string
	LastUpdated        time.Time
}

type SampleDecision struct {
	QAID      string
	Result    domainbatch.SampleResult
	Notes     string
	DecidedAt time.Time
}

type BatchReadRepository interface {
	GetBatch(ctx context.Context, batchID string) (BatchRecord, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]BatchRecord, error)
	GetSample(ctx context.Context, batchID string, sampleID string) (SampleRecord, error)
	ListSamples(ctx context.Context, batchID string) ([]SampleRecord, error)
	ListBatchEvents(ctx context.Context, batchID string) ([]BatchEventRecord, error)
}

type BatchRepository interface {
	BatchReadRepository
	// LockBatch reads the batch and holds its row lock for the rest of the
	// transaction in ctx.
	LockBatch(ctx context.Context, batchID string) (BatchRecord, error)
	CreateBatch(ctx context.Context, batch BatchRecord) (BatchRecord, error)
	UpdateBatch(ctx context.Context, batchID string, update BatchUpdate) error
	// ClaimBatch sets qa_current_id only while the batch is awaitingQA and unclaimed.
	ClaimBatch(ctx context.Context, batchID string, qaID string, at time.Time) (bool, error)
	// ReserveAttempt increments the batch sample counter when the batch is in one
	// of the given statuses and returns the new attempt number.
	ReserveAttempt(ctx context.Context, batchID string, statuses []domainbatch.Status) (int, bool, error)
	AppendStaff(ctx context.Context, batchID string, kind StaffKind, actorID string) error
	CreateSample(ctx context.Context, sample SampleRecord) (SampleRecord, error)
	// DecideSample records a result only while the sample is pending.
	DecideSample(ctx context.Context, batchID string, sampleID string, decision SampleDecision) (bool, error)
	AppendEvent(ctx context.Context, input BatchEventCreate) error
}
