// Package discord connects the ticket lifecycle to Discord over the
// Gateway WebSocket, and implements the platform primitives the lifecycle
// consumes.
package discord

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m8riozzz/Bot-M8rioo/internal/config"
	"github.com/m8riozzz/Bot-M8rioo/internal/ticket"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// Component custom IDs. These are the stable control identifiers carried
// by the panel, welcome, and duty buttons.
const (
	createTicketID = "create_support_ticket"
	closeTicketID  = "close_support_ticket"
	onDutyID       = "on_duty"
	offDutyID      = "off_duty"
)

// session abstracts the discordgo.Session methods we use, enabling test
// mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UpdateStreamingStatus(idle int, name string, url string) error
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	return r.s.User(userID, options...)
}
func (r *realSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.Channel(channelID, options...)
}
func (r *realSession) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return r.s.GuildChannels(guildID, options...)
}
func (r *realSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.GuildChannelCreateComplex(guildID, data, options...)
}
func (r *realSession) ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return r.s.ChannelDelete(channelID, options...)
}
func (r *realSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return r.s.ChannelMessages(channelID, limit, beforeID, afterID, aroundID, options...)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	return r.s.ChannelMessagesBulkDelete(channelID, messages, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}
func (r *realSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.InteractionResponseEdit(interaction, newresp, options...)
}
func (r *realSession) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return r.s.GuildRoles(guildID, options...)
}
func (r *realSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	return r.s.GuildMemberRoleAdd(guildID, userID, roleID, options...)
}
func (r *realSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	return r.s.GuildMemberRoleRemove(guildID, userID, roleID, options...)
}
func (r *realSession) UpdateStreamingStatus(idle int, name string, url string) error {
	return r.s.UpdateStreamingStatus(idle, name, url)
}
func (r *realSession) ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error) {
	return r.s.ChannelVoiceJoin(gID, cID, mute, deaf)
}

// Bot owns the Discord Gateway connection, routes button interactions to
// the ticket lifecycle, and runs the panel, presence, and keepalive side
// surfaces. It implements ticket.Platform.
type Bot struct {
	sess session
	cfg  *config.Config
	out  io.Writer

	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu        sync.Mutex
	mgr       *ticket.Manager
	botUserID string
	runCtx    context.Context
}

// Opts holds parameters for creating a Bot.
type Opts struct {
	Config *config.Config
	Out    io.Writer // defaults to os.Stdout
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Bot.
func New(opts Opts) (*Bot, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("discord: config is required")
	}
	if opts.Session == nil && opts.Config.Discord.Token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Bot{
		sess:        opts.Session,
		cfg:         opts.Config,
		out:         out,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// SetManager attaches the ticket lifecycle manager. Must be called before
// Run; interactions arriving without a manager are ignored.
func (b *Bot) SetManager(m *ticket.Manager) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mgr = m
}

// Run opens the gateway connection, publishes the support panel, starts
// the presence rotation and voice keepalive, and blocks until the context
// is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	if b.sess == nil {
		dg, err := discordgo.New("Bot " + b.cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildVoiceStates
		b.sess = &realSession{s: dg}
	}

	b.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.mu.Lock()
		b.botUserID = r.User.ID
		b.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	b.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})
	b.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(i)
	})

	if err := b.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	if b.cfg.Discord.PanelChannelID != "" {
		if err := b.PublishPanel(ctx); err != nil {
			log.Printf("discord: publish panel: %v", err)
		}
	}

	if len(b.cfg.Presence.Statuses) > 0 {
		go b.rotatePresence(ctx)
	}
	if b.cfg.Presence.VoiceChannelID != "" {
		go b.voiceKeepalive(ctx)
	}

	fmt.Fprintf(b.out, "ticketd online\n")
	<-ctx.Done()
	fmt.Fprintf(b.out, "ticketd shutting down...\n")
	if err := b.sess.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return nil
}

// rotatePresence cycles through the configured statuses on a fixed
// interval, streaming style, the first one applied immediately.
func (b *Bot) rotatePresence(ctx context.Context) {
	interval := time.Duration(b.cfg.Presence.RotateIntervalSec) * time.Second
	statuses := b.cfg.Presence.Statuses
	i := 0

	b.applyPresence(statuses[i])
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i = (i + 1) % len(statuses)
			b.applyPresence(statuses[i])
		}
	}
}

func (b *Bot) applyPresence(st config.PresenceStatus) {
	if err := b.sess.UpdateStreamingStatus(0, st.Name, st.URL); err != nil {
		log.Printf("discord: update presence %q: %v", st.Name, err)
	}
}

// voiceKeepalive (re)joins the configured voice channel on the presence
// interval. Joining an already-joined channel is a cheap no-op on the
// gateway side; errors are logged and the loop keeps going.
func (b *Bot) voiceKeepalive(ctx context.Context) {
	interval := time.Duration(b.cfg.Presence.RotateIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := b.sess.ChannelVoiceJoin(b.cfg.Discord.GuildID, b.cfg.Presence.VoiceChannelID, false, false)
			if err != nil {
				log.Printf("discord: voice keepalive: %v", err)
			}
		}
	}
}

// BotUserID returns the bot's Discord user ID (available after Ready).
func (b *Bot) BotUserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.botUserID
}

// retryOnRateLimit calls fn and retries with exponential backoff on
// Discord rate limit errors. It respects context cancellation.
func (b *Bot) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * b.baseBackoff
		if wait > b.maxBackoff {
			wait = b.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
