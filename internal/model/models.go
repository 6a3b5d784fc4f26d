package model

import (
	"time"
)

// Option is one entry of the settings collection. Profiles live under
// "+name" keys; Value holds the entry's JSON text.
type Option struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// Fetch records the last download attempt for a profile with a remote source.
type Fetch struct {
	ProfileName string `gorm:"primaryKey"`
	URL         string
	Bytes       int
	Changed     bool
	Error       string
	FetchedAt   time.Time
}
