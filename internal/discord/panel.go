package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// panelTitle marks the bot's own panel messages so stale ones can be
// purged before reposting.
const panelTitle = "Support"

// PublishPanel posts the persistent "create ticket" control into the
// configured panel channel, removing any previous panel the bot left
// behind first. The purge is best-effort: a failed cleanup never blocks
// the repost.
func (b *Bot) PublishPanel(ctx context.Context) error {
	channelID := b.cfg.Discord.PanelChannelID
	if channelID == "" {
		return fmt.Errorf("discord: panel channel not configured")
	}

	b.purgeOldPanels(ctx, channelID)

	data := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: panelTitle,
			Description: "Do you need help with something? Contact our staff team privately " +
				"so we can assist you with whatever you need.\n\n" +
				"**Additional information:**\n" +
				"• If it's urgent, just mention one of our staff members.\n" +
				"• Please give us clear information.",
			Color: 0x992d22,
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Staff Support",
			},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Open a ticket",
						Style:    discordgo.SecondaryButton,
						CustomID: createTicketID,
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
		return fmt.Errorf("discord: publish panel: %w", err)
	}
	fmt.Fprintf(b.out, "discord: support panel published to %s\n", channelID)
	return nil
}

// PublishPanelOnce publishes the panel over plain REST, without opening a
// gateway connection. Used by the one-shot panel command.
func (b *Bot) PublishPanelOnce(ctx context.Context) error {
	if b.sess == nil {
		dg, err := discordgo.New("Bot " + b.cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		b.sess = &realSession{s: dg}
	}
	return b.PublishPanel(ctx)
}

// purgeOldPanels bulk-deletes previous panel messages the bot posted into
// the panel channel.
func (b *Bot) purgeOldPanels(ctx context.Context, channelID string) {
	msgs, err := b.sess.ChannelMessages(channelID, 50, "", "", "")
	if err != nil {
		log.Printf("discord: panel purge: list messages: %v", err)
		return
	}

	botID := b.BotUserID()
	if botID == "" {
		// Not connected to the gateway; resolve ourselves over REST.
		if u, err := b.sess.User("@me"); err == nil && u != nil {
			botID = u.ID
			b.mu.Lock()
			b.botUserID = botID
			b.mu.Unlock()
		}
	}
	var stale []string
	for _, m := range msgs {
		if m.Author == nil || m.Author.ID != botID || botID == "" {
			continue
		}
		for _, e := range m.Embeds {
			if e.Title == panelTitle {
				stale = append(stale, m.ID)
				break
			}
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := b.sess.ChannelMessagesBulkDelete(channelID, stale); err != nil {
		log.Printf("discord: panel purge: bulk delete: %v", err)
	}
}
