package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunQueued    string = "QUEUED"
	RunRunning   string = "RUNNING"
	RunPassed    string = "PASSED"
	RunFailed    string = "FAILED"
	RunCancelled string = "CANCELLED"
)

func IsFinalRunStatus(status string) bool {
	return status == RunPassed || status == RunFailed || status == RunCancelled
}

// ValidationRun records one asynchronous validation of an uploaded dataset.
// ErrorKind, ErrorLine and ErrorMessage hold the first error found, if any.
type ValidationRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	FileName  string `gorm:"not null"`
	FileRole  string `gorm:"size:20;not null"`
	SizeBytes int64
	ObjectKey string `gorm:"not null"`

	Status string `gorm:"size:20;not null;index"`

	ErrorKind    sql.NullString `gorm:"size:20"`
	ErrorLine    sql.NullInt64
	ErrorMessage sql.NullString

	LinesScanned   int64 `gorm:"default:0"`
	RecordsChecked int64 `gorm:"default:0"`

	Summary datatypes.JSON

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

// RunSummary is stored in ValidationRun.Summary once a run finishes.
type RunSummary struct {
	Lines        int     `json:"lines"`
	Records      int     `json:"records"`
	BytesScanned int64   `json:"bytes_scanned"`
	DurationSecs float64 `json:"duration_secs"`
}
