package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/m8riozzz/Bot-M8rioo/internal/models"
	"gorm.io/gorm"
)

// closureEvent holds data for a ticket closure SSE event.
type closureEvent struct {
	ID           uint   `json:"id"`
	TicketName   string `json:"ticket_name"`
	ClosedBy     string `json:"closed_by"`
	MessageCount int    `json:"message_count"`
	Delivered    bool   `json:"delivered"`
	OpenCount    int64  `json:"open_count"`
}

// handleSSE streams ticket closures as they land in the archive table.
// The feed polls the database rather than hooking the lifecycle directly,
// so it also picks up closures performed by other processes.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Only alert on closures that happen after the client connects.
		var lastSeenID uint
		var latest models.ArchiveRecord
		if err := db.Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var records []models.ArchiveRecord
				db.Where("id > ?", lastSeenID).Order("id ASC").Find(&records)
				if len(records) == 0 {
					continue
				}
				lastSeenID = records[len(records)-1].ID

				var open int64
				db.Model(&models.Ticket{}).
					Where("state = ?", models.TicketOpen).
					Count(&open)

				for _, r := range records {
					writeSSE(c.Writer, "closure", closureEvent{
						ID:           r.ID,
						TicketName:   r.TicketName,
						ClosedBy:     r.ClosedBy,
						MessageCount: r.MessageCount,
						Delivered:    r.Delivered,
						OpenCount:    open,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
