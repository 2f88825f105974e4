package ticket

import (
	"strings"
	"time"
)

// transcriptTimeLayout formats per-message timestamps in local time.
const transcriptTimeLayout = "2006-01-02 15:04:05"

// TranscriptMeta is the closure metadata rendered into the transcript
// header.
type TranscriptMeta struct {
	TicketName   string
	CreatorLabel string // original creator, derived from the channel name
	ClosedBy     string // closing actor tag
	ClosedAt     time.Time
}

// RenderTranscript renders an ordered message sequence plus closure
// metadata into the durable plain-text record. Pure and deterministic:
// identical input always produces byte-identical output. Messages must be
// oldest-first; attachment URLs are listed verbatim, comma-joined, on the
// line after the message that carried them.
func RenderTranscript(msgs []Message, meta TranscriptMeta) string {
	var b strings.Builder

	b.WriteString("Transcript of ")
	b.WriteString(meta.TicketName)
	b.WriteString("\n")
	b.WriteString("Opened by: ")
	b.WriteString(meta.CreatorLabel)
	b.WriteString("\n")
	b.WriteString("Closed by: ")
	b.WriteString(meta.ClosedBy)
	b.WriteString(" at ")
	b.WriteString(meta.ClosedAt.Format(time.RFC3339))
	b.WriteString("\n\n")

	for _, m := range msgs {
		b.WriteString("[")
		b.WriteString(m.Timestamp.Local().Format(transcriptTimeLayout))
		b.WriteString("] ")
		b.WriteString(m.AuthorTag)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
		if len(m.Attachments) > 0 {
			b.WriteString("Attachments: ")
			b.WriteString(strings.Join(m.Attachments, ", "))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// TranscriptFileName returns the archive attachment name for a ticket.
func TranscriptFileName(ticketName string) string {
	return ticketName + "_transcript.txt"
}
