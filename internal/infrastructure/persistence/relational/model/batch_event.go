package model

import "time"

type BatchEvent struct {
	EventID    uint64    `gorm:"column:event_id;primaryKey;autoIncrement"`
	BatchID    string    `gorm:"column:batch_id;type:varchar(64);not null;index"`
	SampleID   string    `gorm:"column:sample_id;type:varchar(64);not null;default:''"`
	ActorID    string    `gorm:"column:actor_id;type:text;not null"`
	Role       string    `gorm:"column:role;type:varchar(16);not null"`
	Action     string    `gorm:"column:action;type:varchar(32);not null"`
	FromStatus string    `gorm:"column:from_status;type:varchar(32);not null;default:''"`
	ToStatus   string    `gorm:"column:to_status;type:varchar(32);not null"`
	Notes      string    `gorm:"column:notes;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (BatchEvent) TableName() string {
	return "batch_events"
}
