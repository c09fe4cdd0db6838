package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

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

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&ValidationRun{}); err != nil {
		return fmt.Errorf("error creating validation_runs table: %w", err)
	}
	return nil
}
