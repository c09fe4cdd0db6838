package migration_1

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ValidationRun struct {
	Summary datatypes.JSON
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&ValidationRun{}, "Summary"); err != nil {
		return fmt.Errorf("error adding Summary column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&ValidationRun{}, "Summary"); err != nil {
		return fmt.Errorf("error dropping Summary column: %w", err)
	}

	return nil
}
