package db

import (
	"fmt"
	"time"

	"github.com/m8riozzz/Bot-M8rioo/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Ticket{},
		&models.ArchiveRecord{},
	}
}

// AutoMigrate creates or updates all ticketd tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// PruneClosed deletes closed ticket rows and their archive records older
// than the cutoff. Returns the number of ticket rows removed.
func PruneClosed(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("state = ? AND closed_at < ?", models.TicketClosed, cutoff).
		Delete(&models.Ticket{})
	if result.Error != nil {
		return 0, fmt.Errorf("db: prune tickets: %w", result.Error)
	}
	if err := db.Where("created_at < ?", cutoff).
		Delete(&models.ArchiveRecord{}).Error; err != nil {
		return result.RowsAffected, fmt.Errorf("db: prune archive records: %w", err)
	}
	return result.RowsAffected, nil
}
