package models

import "time"

// BrainMemory is a fact or preference remembered for a user.
type BrainMemory struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	Content        string     `db:"content" json:"content"`
	MemoryType     string     `db:"memory_type" json:"memoryType"`
	Importance     int        `db:"importance" json:"importance"`
	Tags           Tags       `db:"tags" json:"tags"`
	Encrypted      bool       `db:"encrypted" json:"-"`
	AccessCount    int        `db:"access_count" json:"accessCount"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"lastAccessedAt,omitempty"`
}

type MemoryFilter struct {
	MemoryType string
	Limit      int
}
