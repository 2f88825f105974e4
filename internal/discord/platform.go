package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/m8riozzz/Bot-M8rioo/internal/ticket"
)

// viewPerm and ticketPerm are the permission bits granted or denied on a
// ticket channel.
var (
	viewPerm   = int64(discordgo.PermissionViewChannel)
	ticketPerm = int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
)

// FetchChannel resolves a channel by ID. A 404 from the API maps to
// (nil, nil): the channel simply does not exist.
func (b *Bot) FetchChannel(ctx context.Context, channelID string) (*ticket.Channel, error) {
	var ch *discordgo.Channel
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = b.sess.Channel(channelID)
		return apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discord: fetch channel %s: %w", channelID, err)
	}
	out := toTicketChannel(ch)
	return &out, nil
}

// CreateChannel provisions a ticket text channel under the configured
// category with exactly three permission overwrites: @everyone denied
// view, the requester and the staff role allowed view and send. The
// @everyone principal is the role sharing the guild's own ID.
func (b *Bot) CreateChannel(ctx context.Context, spec ticket.CreateChannelSpec) (*ticket.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             spec.CategoryID,
		PermissionOverwrites: buildOverwrites(b.cfg.Discord.GuildID, spec.RequesterID, spec.StaffRoleID),
	}

	var ch *discordgo.Channel
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, apiErr = b.sess.GuildChannelCreateComplex(b.cfg.Discord.GuildID, data)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("discord: create channel %s: %w", spec.Name, err)
	}
	out := toTicketChannel(ch)
	return &out, nil
}

// buildOverwrites computes the three access overwrites for a ticket
// channel.
func buildOverwrites(guildID, requesterID, staffRoleID string) []*discordgo.PermissionOverwrite {
	return []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: viewPerm},
		{ID: requesterID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketPerm},
		{ID: staffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketPerm},
	}
}

// DeleteChannel removes a channel.
func (b *Bot) DeleteChannel(ctx context.Context, channelID string) error {
	err := b.retryOnRateLimit(ctx, func() error {
		_, apiErr := b.sess.ChannelDelete(channelID)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, err)
	}
	return nil
}

// CategoryChannels lists the guild channels parented to categoryID.
func (b *Bot) CategoryChannels(ctx context.Context, categoryID string) ([]ticket.Channel, error) {
	var chans []*discordgo.Channel
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		chans, apiErr = b.sess.GuildChannels(b.cfg.Discord.GuildID)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("discord: list guild channels: %w", err)
	}

	var out []ticket.Channel
	for _, ch := range chans {
		if ch.ParentID == categoryID {
			out = append(out, toTicketChannel(ch))
		}
	}
	return out, nil
}

// Messages reads one bounded page of channel history, newest first.
func (b *Bot) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]ticket.Message, error) {
	var msgs []*discordgo.Message
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msgs, apiErr = b.sess.ChannelMessages(channelID, limit, beforeID, "", "")
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("discord: channel messages %s: %w", channelID, err)
	}

	out := make([]ticket.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toTicketMessage(m))
	}
	return out, nil
}

// SendMessage posts a plain message.
func (b *Bot) SendMessage(ctx context.Context, channelID, content string) error {
	err := b.retryOnRateLimit(ctx, func() error {
		_, apiErr := b.sess.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content})
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message to %s: %w", channelID, err)
	}
	return nil
}

// SendWelcome posts the ticket welcome message mentioning the requester
// and the staff role, with the close button attached.
func (b *Bot) SendWelcome(ctx context.Context, channelID string, actor ticket.Actor, staffRoleID string) error {
	data := &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> <@&%s>", actor.ID, staffRoleID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Support ticket",
			Description: "A staff member will be with you shortly. Describe your issue with as much detail as you can.",
			Color:       0x992d22,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Close ticket",
						Style:    discordgo.DangerButton,
						CustomID: closeTicketID,
					},
				},
			},
		},
	}
	err := b.retryOnRateLimit(ctx, func() error {
		_, apiErr := b.sess.ChannelMessageSendComplex(channelID, data)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("discord: welcome message to %s: %w", channelID, err)
	}
	return nil
}

// SendFile delivers a message with a named plain-text file attachment.
func (b *Bot) SendFile(ctx context.Context, channelID, content, fileName string, data io.Reader) error {
	send := &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        fileName,
			ContentType: "text/plain",
			Reader:      data,
		}},
	}
	// No rate-limit retry here: the file reader can only be consumed once.
	if _, err := b.sess.ChannelMessageSendComplex(channelID, send); err != nil {
		return fmt.Errorf("discord: send file to %s: %w", channelID, err)
	}
	return nil
}

// ResolveStaff reports whether the actor holds the configured staff role.
// The guild's role list is consulted first so that a staff role ID that no
// longer resolves is a hard error, never a silent grant or denial the
// caller can't tell apart from "not staff".
func (b *Bot) ResolveStaff(ctx context.Context, actor ticket.Actor) (bool, error) {
	staffRoleID := b.cfg.Discord.StaffRoleID
	if staffRoleID == "" {
		return false, fmt.Errorf("discord: staff role not configured")
	}

	var roles []*discordgo.Role
	err := b.retryOnRateLimit(ctx, func() error {
		var apiErr error
		roles, apiErr = b.sess.GuildRoles(b.cfg.Discord.GuildID)
		return apiErr
	})
	if err != nil {
		return false, fmt.Errorf("discord: list guild roles: %w", err)
	}

	found := false
	for _, role := range roles {
		if role.ID == staffRoleID {
			found = true
			break
		}
	}
	if !found {
		return false, fmt.Errorf("discord: staff role %s does not exist in guild %s", staffRoleID, b.cfg.Discord.GuildID)
	}

	for _, id := range actor.Roles {
		if id == staffRoleID {
			return true, nil
		}
	}
	return false, nil
}

// toTicketChannel maps a discordgo channel to the lifecycle's channel type.
func toTicketChannel(ch *discordgo.Channel) ticket.Channel {
	return ticket.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		Text:     ch.Type == discordgo.ChannelTypeGuildText,
	}
}

// toTicketMessage maps a discordgo message, collecting attachment URLs.
func toTicketMessage(m *discordgo.Message) ticket.Message {
	var attachments []string
	for _, a := range m.Attachments {
		attachments = append(attachments, a.URL)
	}
	tag := ""
	if m.Author != nil {
		tag = m.Author.Username
	}
	return ticket.Message{
		ID:          m.ID,
		AuthorTag:   tag,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		Attachments: attachments,
	}
}

// isNotFound reports whether err is a Discord 404.
func isNotFound(err error) bool {
	restErr, ok := err.(*discordgo.RESTError)
	return ok && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
