package model

// BatchStaff holds the ordered processor and QA history sets of a batch.
type BatchStaff struct {
	Seq     uint64 `gorm:"column:seq;primaryKey;autoIncrement"`
	BatchID string `gorm:"column:batch_id;type:varchar(64);not null;uniqueIndex:idx_batch_staff_member,priority:1"`
	Kind    string `gorm:"column:kind;type:varchar(16);not null;uniqueIndex:idx_batch_staff_member,priority:2"`
	ActorID string `gorm:"column:actor_id;type:varchar(128);not null;uniqueIndex:idx_batch_staff_member,priority:3"`
}

func (BatchStaff) TableName() string {
	return "batch_staff"
}
