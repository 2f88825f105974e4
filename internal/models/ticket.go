// Package models defines the GORM models persisted by ticketd.
package models

import "time"

// Ticket state values. A ticket is Open from creation until a valid close
// is accepted, Closing while the transcript is archived and the channel is
// torn down, and Closed once the channel is gone. The Discord channel scan
// stays authoritative for duplicate detection; these rows are the
// restart-surviving audit trail behind it.
const (
	TicketOpen    = "open"
	TicketClosing = "closing"
	TicketClosed  = "closed"
)

// Ticket records one support conversation channel.
type Ticket struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ChannelID  string `gorm:"size:32;uniqueIndex;not null"`
	Name       string `gorm:"size:128;not null"`
	OwnerKey   string `gorm:"size:128;not null;index"`
	OwnerID    string `gorm:"size:32;not null"`
	OwnerTag   string `gorm:"size:128"`
	CategoryID string `gorm:"size:32"`
	State      string `gorm:"size:16;default:open;index"`
	ClosedBy   string `gorm:"size:128"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
}

// ArchiveRecord records one transcript delivery to the archive channel.
type ArchiveRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TicketName   string `gorm:"size:128;not null;index"`
	ChannelID    string `gorm:"size:32;not null"`
	FileName     string `gorm:"size:160;not null"`
	MessageCount int
	ClosedBy     string `gorm:"size:128"`
	Delivered    bool `gorm:"default:false"`
	CreatedAt    time.Time
}
