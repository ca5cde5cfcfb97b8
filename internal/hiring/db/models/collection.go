// Package models contains the database row models for the hiring store,
// configured to work using GORM as the ORM.
package models

import (
	"time"
)

// DefaultCollectionID names the single row that holds the job collection.
const DefaultCollectionID = "default"

// JobCollection stores the whole job collection as one JSON document.
// Version is the content hash of Data and is the compare-and-swap token.
type JobCollection struct {
	ID        string `gorm:"primaryKey;size:64"`
	Data      string `gorm:"type:text;not null"`
	Version   string `gorm:"size:64;not null;index"`
	Count     int    `gorm:"check:count >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
