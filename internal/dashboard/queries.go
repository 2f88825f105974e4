package dashboard

import (
	"time"

	"github.com/m8riozzz/Bot-M8rioo/internal/models"
	"gorm.io/gorm"
)

// TicketRow is the API shape for a ticket record.
type TicketRow struct {
	ID        uint       `json:"id"`
	ChannelID string     `json:"channel_id"`
	Name      string     `json:"name"`
	OwnerKey  string     `json:"owner_key"`
	OwnerTag  string     `json:"owner_tag"`
	State     string     `json:"state"`
	ClosedBy  string     `json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ArchiveRow is the API shape for an archive record.
type ArchiveRow struct {
	ID           uint      `json:"id"`
	TicketName   string    `json:"ticket_name"`
	FileName     string    `json:"file_name"`
	MessageCount int       `json:"message_count"`
	ClosedBy     string    `json:"closed_by"`
	Delivered    bool      `json:"delivered"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats summarizes ticket volume for the overview endpoint.
type Stats struct {
	Open          int64 `json:"open"`
	Closing       int64 `json:"closing"`
	Closed        int64 `json:"closed"`
	ArchivedFiles int64 `json:"archived_files"`
}

// TicketList returns tickets, newest first, optionally filtered by state.
func TicketList(db *gorm.DB, state string) ([]TicketRow, error) {
	q := db.Model(&models.Ticket{}).Order("created_at DESC")
	if state != "" {
		q = q.Where("state = ?", state)
	}

	var tickets []models.Ticket
	if err := q.Find(&tickets).Error; err != nil {
		return nil, err
	}

	rows := make([]TicketRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, toTicketRow(t))
	}
	return rows, nil
}

// GetTicket returns one ticket by channel ID. Returns
// gorm.ErrRecordNotFound when no row matches.
func GetTicket(db *gorm.DB, channelID string) (*TicketRow, error) {
	var t models.Ticket
	if err := db.Where("channel_id = ?", channelID).First(&t).Error; err != nil {
		return nil, err
	}
	row := toTicketRow(t)
	return &row, nil
}

// ArchiveList returns the most recent archive records, newest first.
func ArchiveList(db *gorm.DB, limit int) ([]ArchiveRow, error) {
	var records []models.ArchiveRecord
	if err := db.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	rows := make([]ArchiveRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, ArchiveRow{
			ID:           r.ID,
			TicketName:   r.TicketName,
			FileName:     r.FileName,
			MessageCount: r.MessageCount,
			ClosedBy:     r.ClosedBy,
			Delivered:    r.Delivered,
			CreatedAt:    r.CreatedAt,
		})
	}
	return rows, nil
}

// TicketStats counts tickets per state plus delivered archives.
func TicketStats(db *gorm.DB) (*Stats, error) {
	var s Stats
	counts := []struct {
		state string
		dst   *int64
	}{
		{models.TicketOpen, &s.Open},
		{models.TicketClosing, &s.Closing},
		{models.TicketClosed, &s.Closed},
	}
	for _, c := range counts {
		if err := db.Model(&models.Ticket{}).Where("state = ?", c.state).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	if err := db.Model(&models.ArchiveRecord{}).Where("delivered = ?", true).Count(&s.ArchivedFiles).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func toTicketRow(t models.Ticket) TicketRow {
	return TicketRow{
		ID:        t.ID,
		ChannelID: t.ChannelID,
		Name:      t.Name,
		OwnerKey:  t.OwnerKey,
		OwnerTag:  t.OwnerTag,
		State:     t.State,
		ClosedBy:  t.ClosedBy,
		CreatedAt: t.CreatedAt,
		ClosedAt:  t.ClosedAt,
	}
}
