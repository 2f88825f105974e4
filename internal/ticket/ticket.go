// Package ticket implements the support-ticket lifecycle: opening an
// access-restricted conversation channel for a requester, and closing it
// again with a transcript archived to a configured destination.
package ticket

import (
	"errors"
	"strings"
	"time"
)

// State of a ticket. Open from creation until a valid close is accepted,
// Closing while the transcript is archived and the channel is torn down,
// Closed once the channel is gone. Closed tickets are no longer addressable;
// the state shows up only in logs and audit records.
type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
)

// Sentinel errors classifying lifecycle failures. Callers match with
// errors.Is; the user-facing message is always sent before these are
// returned, so they exist for logging and tests.
var (
	// ErrConfiguration means a required identifier is absent or does not
	// resolve to an entity of the expected kind.
	ErrConfiguration = errors.New("configuration error")
	// ErrPermission means the actor lacks the right to perform the
	// requested transition.
	ErrPermission = errors.New("permission denied")
	// ErrBusy means another create or close already holds the execution
	// token for this owner key or channel.
	ErrBusy = errors.New("operation already in progress")
)

// Actor is a requester or staff member as seen by the lifecycle.
type Actor struct {
	ID    string   // stable platform user ID
	Tag   string   // human-readable tag/username
	Roles []string // role IDs the actor holds, from the triggering event
}

// Channel is the platform channel entity the lifecycle operates on.
type Channel struct {
	ID       string
	Name     string
	ParentID string // category the channel lives under
	Text     bool   // true for plain text channels
}

// Message is one historical message in a ticket channel.
type Message struct {
	ID          string
	AuthorTag   string
	Content     string
	Timestamp   time.Time
	Attachments []string // attachment URLs, in platform order
}

// OwnerKey normalizes a requester tag into the identity string used for
// ticket naming and duplicate detection: lowercase, with runs of characters
// outside [a-z0-9] collapsed to a single '-', trimmed at both ends.
func OwnerKey(tag string) string {
	var b strings.Builder
	b.Grow(len(tag))
	dash := false
	for _, r := range strings.ToLower(tag) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
