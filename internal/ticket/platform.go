package ticket

import (
	"context"
	"io"
)

// Platform abstracts the messaging-platform primitives the lifecycle
// consumes. The Discord implementation lives in internal/discord; tests use
// MockPlatform. Every call is a suspension point and takes a context.
type Platform interface {
	// FetchChannel resolves a channel by ID. Returns (nil, nil) when the
	// channel does not exist.
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)

	// CreateChannel provisions a new ticket channel with its access
	// overwrites: hidden from everyone, visible and writable for the
	// requester and the staff role.
	CreateChannel(ctx context.Context, spec CreateChannelSpec) (*Channel, error)

	// DeleteChannel removes a channel. Deleting an already-deleted channel
	// returns an error the caller treats as terminal, not retryable.
	DeleteChannel(ctx context.Context, channelID string) error

	// CategoryChannels lists the channels parented to a category.
	CategoryChannels(ctx context.Context, categoryID string) ([]Channel, error)

	// Messages reads one bounded page of channel history, newest first,
	// strictly before beforeID (empty beforeID means most recent).
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error)

	// SendMessage posts a plain message into a channel.
	SendMessage(ctx context.Context, channelID, content string) error

	// SendWelcome posts the ticket welcome message mentioning the requester
	// and the staff role, carrying the close control.
	SendWelcome(ctx context.Context, channelID string, actor Actor, staffRoleID string) error

	// SendFile delivers a message with a named file attachment.
	SendFile(ctx context.Context, channelID, content, fileName string, data io.Reader) error

	// ResolveStaff reports whether the actor holds the staff role. It
	// returns an error when the configured role cannot be resolved at all;
	// callers must fail closed on that error.
	ResolveStaff(ctx context.Context, actor Actor) (bool, error)
}

// CreateChannelSpec describes the ticket channel to provision.
type CreateChannelSpec struct {
	Name        string
	CategoryID  string
	RequesterID string
	StaffRoleID string
}

// Responder is the acknowledgment channel back to the originating UI event.
// It supports an initial deferred state followed by exactly one reply; a
// Respond after Defer edits the deferred acknowledgment.
type Responder interface {
	Defer(ctx context.Context, ephemeral bool) error
	Respond(ctx context.Context, content string, ephemeral bool) error
}
