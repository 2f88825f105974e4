package ticket

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/m8riozzz/Bot-M8rioo/internal/models"
)

// Default grace delay between the final closure notice and channel
// removal. Long enough for the UI to settle, nothing more.
const defaultGraceDelay = 5 * time.Second

// Notifier receives closure notifications for an ops channel. Optional and
// best-effort.
type Notifier interface {
	TicketClosed(ctx context.Context, ticketName, closedBy string, messageCount int) error
}

// Manager owns the ticket state machine: the open/close protocol, naming,
// permission provisioning on creation, and archival plus deletion on
// closure. One Manager serves the whole process; each interaction runs its
// handler in its own goroutine, serialized per owner key and per channel
// through the keyed execution tokens.
type Manager struct {
	platform Platform
	policy   Policy
	locks    *KeyedLocks
	store    *Store   // optional
	notifier Notifier // optional

	staffRoleID string
	archiveID   string
	grace       time.Duration
	out         io.Writer
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Platform    Platform
	Store       *Store   // optional; lifecycle audit records
	Notifier    Notifier // optional; closure notifications
	CategoryID  string   // category ticket channels live under
	StaffRoleID string   // role granting the staff capability
	ArchiveID   string   // transcript archive channel
	Prefix      string   // defaults to "ticket-"
	GraceDelay  time.Duration
	Out         io.Writer // defaults to os.Stdout
}

// NewManager creates a Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("ticket: platform is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ticket-"
	}
	grace := opts.GraceDelay
	if grace == 0 {
		grace = defaultGraceDelay
	}
	if grace < 0 {
		grace = 0
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Manager{
		platform:    opts.Platform,
		policy:      Policy{Prefix: prefix, CategoryID: opts.CategoryID},
		locks:       NewKeyedLocks(),
		store:       opts.Store,
		notifier:    opts.Notifier,
		staffRoleID: opts.StaffRoleID,
		archiveID:   opts.ArchiveID,
		grace:       grace,
		out:         out,
	}, nil
}

// HandleCreate processes a create intent from actor. On success the actor
// receives a private reference to the new channel; if an open ticket
// already exists for the actor's owner key, the reply references that
// instead and nothing is created.
func (m *Manager) HandleCreate(ctx context.Context, actor Actor, r Responder) error {
	// Configuration prerequisites, checked before touching the channel
	// space. The end user only ever sees a generic failure.
	if m.policy.CategoryID == "" || m.staffRoleID == "" {
		log.Printf("ticket: create by %s: category or staff role not configured", actor.Tag)
		m.respond(ctx, r, "Ticket creation is not available right now. Please contact an administrator.", true)
		return fmt.Errorf("ticket: create: %w: ticket_category_id and staff_role_id must be set", ErrConfiguration)
	}

	key := OwnerKey(actor.Tag)
	if key == "" {
		m.respond(ctx, r, "Could not create a ticket for this account.", true)
		return fmt.Errorf("ticket: create: empty owner key for actor %q", actor.ID)
	}

	if !m.locks.TryAcquire("owner:" + key) {
		m.respond(ctx, r, "Your ticket is already being processed. One moment.", true)
		return fmt.Errorf("ticket: create %s: %w", key, ErrBusy)
	}
	defer m.locks.Release("owner:" + key)

	// Resolving the staff capability also proves the configured role
	// exists; an unresolvable role fails the create closed.
	if _, err := m.platform.ResolveStaff(ctx, actor); err != nil {
		log.Printf("ticket: create %s: resolve staff role: %v", key, err)
		m.respond(ctx, r, "Ticket creation is not available right now. Please contact an administrator.", true)
		return fmt.Errorf("ticket: create %s: %w: %v", key, ErrConfiguration, err)
	}

	existing, err := m.platform.CategoryChannels(ctx, m.policy.CategoryID)
	if err != nil {
		log.Printf("ticket: create %s: list category channels: %v", key, err)
		m.respond(ctx, r, "Something went wrong while creating your ticket. Please try again.", true)
		return fmt.Errorf("ticket: create %s: list channels: %w", key, err)
	}

	if open := m.policy.FindOpen(key, existing); open != nil {
		m.respond(ctx, r, fmt.Sprintf("You already have an open ticket: <#%s>", open.ID), true)
		return nil
	}

	ch, err := m.platform.CreateChannel(ctx, CreateChannelSpec{
		Name:        m.policy.Prefix + key,
		CategoryID:  m.policy.CategoryID,
		RequesterID: actor.ID,
		StaffRoleID: m.staffRoleID,
	})
	if err != nil {
		log.Printf("ticket: create %s: create channel: %v", key, err)
		m.respond(ctx, r, "Something went wrong while creating your ticket. Please try again.", true)
		return fmt.Errorf("ticket: create %s: create channel: %w", key, err)
	}

	fmt.Fprintf(m.out, "ticket: opened %s (%s) for %s\n", ch.Name, ch.ID, actor.Tag)

	if m.store != nil {
		if err := m.store.RecordOpen(ch, actor, m.policy.CategoryID); err != nil {
			log.Printf("ticket: %v", err)
		}
	}

	// Creation succeeded; the welcome message is best-effort and does not
	// affect the ticket's usability.
	if err := m.platform.SendWelcome(ctx, ch.ID, actor, m.staffRoleID); err != nil {
		log.Printf("ticket: create %s: welcome message: %v", key, err)
	}

	m.respond(ctx, r, fmt.Sprintf("Your ticket has been created: <#%s>", ch.ID), true)
	return nil
}

// HandleClose processes a close intent from actor against the channel the
// control was activated in. The remaining work is slow, so the request is
// acknowledged publicly up front; the transcript is archived if the archive
// destination resolves, and the channel is removed after the grace delay
// either way.
func (m *Manager) HandleClose(ctx context.Context, actor Actor, channelID string, r Responder) error {
	if err := r.Defer(ctx, false); err != nil {
		log.Printf("ticket: close %s: ack: %v", channelID, err)
	}

	// The channel is the mutual-exclusion token for the close protocol; a
	// second activation before deletion completes gets turned away here.
	if !m.locks.TryAcquire("channel:" + channelID) {
		m.respond(ctx, r, "This ticket is already being closed.", false)
		return fmt.Errorf("ticket: close %s: %w", channelID, ErrBusy)
	}
	defer m.locks.Release("channel:" + channelID)

	ch, err := m.platform.FetchChannel(ctx, channelID)
	if err != nil {
		log.Printf("ticket: close %s: fetch channel: %v", channelID, err)
		m.respond(ctx, r, "Something went wrong while closing this ticket.", false)
		return fmt.Errorf("ticket: close %s: fetch channel: %w", channelID, err)
	}
	if ch == nil || ch.ParentID != m.policy.CategoryID || !strings.HasPrefix(ch.Name, m.policy.Prefix) {
		m.respond(ctx, r, "This channel is not a support ticket.", false)
		return fmt.Errorf("ticket: close %s: %w: not a ticket channel", channelID, ErrPermission)
	}

	hasStaff, err := m.platform.ResolveStaff(ctx, actor)
	if err != nil {
		// Fail closed: an unresolvable staff role denies the close.
		log.Printf("ticket: close %s: resolve staff role: %v", ch.Name, err)
		m.respond(ctx, r, "Ticket closing is not available right now. Please contact an administrator.", false)
		return fmt.Errorf("ticket: close %s: %w: %v", ch.Name, ErrConfiguration, err)
	}
	if !m.policy.CanClose(actor, hasStaff, *ch) {
		m.respond(ctx, r, "You do not have permission to close this ticket.", false)
		return fmt.Errorf("ticket: close %s by %s: %w", ch.Name, actor.Tag, ErrPermission)
	}

	if m.store != nil {
		if err := m.store.MarkClosing(channelID, actor.Tag); err != nil {
			log.Printf("ticket: %v", err)
		}
	}

	m.respond(ctx, r, "Saving the transcript and closing this ticket.", false)

	messageCount := m.archive(ctx, ch, actor)

	if err := m.platform.SendMessage(ctx, channelID, "This ticket will be deleted in a few seconds."); err != nil {
		log.Printf("ticket: close %s: final notice: %v", ch.Name, err)
	}

	if m.grace > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.grace):
		}
	}

	// Removal failures are logged, never retried; the ticket does not
	// reopen.
	if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
		log.Printf("ticket: close %s: delete channel: %v", ch.Name, err)
	} else {
		fmt.Fprintf(m.out, "ticket: closed %s (%s) by %s\n", ch.Name, channelID, actor.Tag)
	}

	if m.store != nil {
		if err := m.store.MarkClosed(channelID); err != nil {
			log.Printf("ticket: %v", err)
		}
	}

	if m.notifier != nil {
		if err := m.notifier.TicketClosed(ctx, ch.Name, actor.Tag, messageCount); err != nil {
			log.Printf("ticket: close %s: notify: %v", ch.Name, err)
		}
	}

	return nil
}

// archive fetches the channel history, renders the transcript, and
// delivers it to the archive destination. Any failure degrades to an
// "archival unavailable" notice in the ticket channel; the close never
// blocks on a broken archive. Returns the number of archived messages.
func (m *Manager) archive(ctx context.Context, ch *Channel, closer Actor) int {
	dest, reason := m.resolveArchive(ctx)
	if dest == nil {
		log.Printf("ticket: close %s: archive destination: %s", ch.Name, reason)
		m.archiveUnavailable(ctx, ch.ID)
		return 0
	}

	msgs, err := FetchHistory(ctx, m.platform, ch.ID)
	if err != nil {
		log.Printf("ticket: close %s: %v", ch.Name, err)
		m.archiveUnavailable(ctx, ch.ID)
		return 0
	}

	// The creator label comes from the channel name, same as the owner-key
	// heuristic used for authorization.
	creator := strings.TrimPrefix(ch.Name, m.policy.Prefix)
	text := RenderTranscript(msgs, TranscriptMeta{
		TicketName:   ch.Name,
		CreatorLabel: creator,
		ClosedBy:     closer.Tag,
		ClosedAt:     time.Now().UTC(),
	})

	fileName := TranscriptFileName(ch.Name)
	header := fmt.Sprintf("Transcript of **%s**, opened by %s, closed by %s.", ch.Name, creator, closer.Tag)
	delivered := true
	if err := m.platform.SendFile(ctx, dest.ID, header, fileName, strings.NewReader(text)); err != nil {
		log.Printf("ticket: close %s: deliver transcript: %v", ch.Name, err)
		m.archiveUnavailable(ctx, ch.ID)
		delivered = false
	}

	if m.store != nil {
		rec := &models.ArchiveRecord{
			TicketName:   ch.Name,
			ChannelID:    ch.ID,
			FileName:     fileName,
			MessageCount: len(msgs),
			ClosedBy:     closer.Tag,
			Delivered:    delivered,
		}
		if err := m.store.RecordArchive(rec); err != nil {
			log.Printf("ticket: %v", err)
		}
	}

	if !delivered {
		return 0
	}
	return len(msgs)
}

// resolveArchive returns the archive destination channel, or nil with a
// reason when it is missing, unresolvable, or not a text channel.
func (m *Manager) resolveArchive(ctx context.Context) (*Channel, string) {
	if m.archiveID == "" {
		return nil, "not configured"
	}
	dest, err := m.platform.FetchChannel(ctx, m.archiveID)
	if err != nil {
		return nil, fmt.Sprintf("fetch %s: %v", m.archiveID, err)
	}
	if dest == nil {
		return nil, fmt.Sprintf("channel %s does not exist", m.archiveID)
	}
	if !dest.Text {
		return nil, fmt.Sprintf("channel %s is not a text channel", m.archiveID)
	}
	return dest, ""
}

// archiveUnavailable tells the ticket channel that no transcript will be
// kept. Best-effort.
func (m *Manager) archiveUnavailable(ctx context.Context, channelID string) {
	msg := "Transcript archival is unavailable; the ticket will be closed without an archive."
	if err := m.platform.SendMessage(ctx, channelID, msg); err != nil {
		log.Printf("ticket: archive-unavailable notice for %s: %v", channelID, err)
	}
}

// respond delivers a user-facing reply, logging instead of propagating
// responder failures; the lifecycle outcome never depends on whether the
// acknowledgment landed.
func (m *Manager) respond(ctx context.Context, r Responder, content string, ephemeral bool) {
	if err := r.Respond(ctx, content, ephemeral); err != nil {
		log.Printf("ticket: respond: %v", err)
	}
}
