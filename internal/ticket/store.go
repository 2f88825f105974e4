package ticket

import (
	"fmt"
	"time"

	"github.com/m8riozzz/Bot-M8rioo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists ticket lifecycle records. The platform channel scan stays
// the authority for duplicate detection; these rows are the audit trail
// that survives restarts and feeds the dashboard. All Manager writes
// through the store are best-effort: failures are logged, never allowed to
// block a create or close.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a GORM connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RecordOpen upserts the open-ticket row for a freshly created channel.
func (s *Store) RecordOpen(ch *Channel, actor Actor, categoryID string) error {
	row := models.Ticket{
		ChannelID:  ch.ID,
		Name:       ch.Name,
		OwnerKey:   OwnerKey(actor.Tag),
		OwnerID:    actor.ID,
		OwnerTag:   actor.Tag,
		CategoryID: categoryID,
		State:      models.TicketOpen,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "owner_key", "owner_id", "owner_tag", "category_id", "state"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ticket: record open %s: %w", ch.ID, err)
	}
	return nil
}

// MarkClosing flips the row for channelID to the closing state and records
// who accepted the close.
func (s *Store) MarkClosing(channelID, closedBy string) error {
	err := s.db.Model(&models.Ticket{}).
		Where("channel_id = ? AND state = ?", channelID, models.TicketOpen).
		Updates(map[string]interface{}{
			"state":     models.TicketClosing,
			"closed_by": closedBy,
		}).Error
	if err != nil {
		return fmt.Errorf("ticket: mark closing %s: %w", channelID, err)
	}
	return nil
}

// MarkClosed finalizes the row for channelID after the channel is removed.
func (s *Store) MarkClosed(channelID string) error {
	now := time.Now()
	err := s.db.Model(&models.Ticket{}).
		Where("channel_id = ?", channelID).
		Updates(map[string]interface{}{
			"state":     models.TicketClosed,
			"closed_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("ticket: mark closed %s: %w", channelID, err)
	}
	return nil
}

// RecordArchive stores one transcript delivery attempt.
func (s *Store) RecordArchive(rec *models.ArchiveRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("ticket: record archive %s: %w", rec.TicketName, err)
	}
	return nil
}

// OpenTickets returns tickets not yet closed, oldest first.
func (s *Store) OpenTickets() ([]models.Ticket, error) {
	var rows []models.Ticket
	err := s.db.Where("state <> ?", models.TicketClosed).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ticket: list open: %w", err)
	}
	return rows, nil
}
