package model

import "time"

type Sample struct {
	SampleID    string     `gorm:"column:sample_id;type:varchar(64);primaryKey"`
	BatchID     string     `gorm:"column:batch_id;type:varchar(64);not null;uniqueIndex:idx_samples_batch_attempt,priority:1"`
	Attempt     int        `gorm:"column:attempt;not null;uniqueIndex:idx_samples_batch_attempt,priority:2"`
	SubmitterID string     `gorm:"column:submitter_id;type:text;not null"`
	QAID        *string    `gorm:"column:qa_id;type:text"`
	Result      string     `gorm:"column:result;type:varchar(16);not null"`
	Notes       string     `gorm:"column:notes;type:text;not null;default:''"`
	SubmittedAt time.Time  `gorm:"column:submitted_at;not null"`
	DecidedAt   *time.Time `gorm:"column:decided_at"`
	Batch       *Batch     `gorm:"foreignKey:BatchID;references:BatchID;constraint:OnDelete:CASCADE"`
}

func (Sample) TableName() string {
	return "samples"
}
