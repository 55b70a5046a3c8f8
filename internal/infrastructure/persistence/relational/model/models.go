package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&Batch{},
		&Sample{},
		&BatchStaff{},
		&BatchEvent{},
		&KVEntry{},
	}
}
