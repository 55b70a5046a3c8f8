package model

import "time"

type Batch struct {
	BatchID            string    `gorm:"column:batch_id;type:varchar(64);primaryKey"`
	Formula            string    `gorm:"column:formula;type:text;not null"`
	Deck               string    `gorm:"column:deck;type:text;not null"`
	BatchNumber        string    `gorm:"column:batch_number;type:text;not null"`
	Status             string    `gorm:"column:status;type:varchar(32);not null;index"`
	CurrentProcessorID string    `gorm:"column:current_processor_id;type:text;not null"`
	QACurrentID        *string   `gorm:"column:qa_current_id;type:text"`
	SampleCount        int       `gorm:"column:sample_count;not null;default:0"`
	StartedAt          time.Time `gorm:"column:started_at;not null"`
	LastUpdated        time.Time `gorm:"column:last_updated;not null;index"`
}

func (Batch) TableName() string {
	return "batches"
}
