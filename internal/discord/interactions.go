package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/m8riozzz/Bot-M8rioo/internal/ticket"
)

// handleInteraction routes a button activation to the right handler. Each
// lifecycle operation runs in its own goroutine; the gateway read loop is
// never blocked on slow work.
func (b *Bot) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		return // DM or partial payload; tickets are guild-only
	}

	b.mu.Lock()
	mgr := b.mgr
	ctx := b.runCtx
	b.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	actor := ticket.Actor{
		ID:    i.Member.User.ID,
		Tag:   i.Member.User.Username,
		Roles: i.Member.Roles,
	}
	r := &interactionResponder{sess: b.sess, interaction: i.Interaction}

	switch i.MessageComponentData().CustomID {
	case createTicketID:
		if mgr == nil {
			return
		}
		go func() {
			if err := mgr.HandleCreate(ctx, actor, r); err != nil {
				log.Printf("discord: %v", err)
			}
		}()
	case closeTicketID:
		if mgr == nil {
			return
		}
		channelID := i.ChannelID
		go func() {
			if err := mgr.HandleClose(ctx, actor, channelID, r); err != nil {
				log.Printf("discord: %v", err)
			}
		}()
	case onDutyID:
		go b.handleDuty(ctx, actor, r, true)
	case offDutyID:
		go b.handleDuty(ctx, actor, r, false)
	}
}

// handleDuty swaps the on/off duty role pair on the member.
func (b *Bot) handleDuty(ctx context.Context, actor ticket.Actor, r ticket.Responder, onDuty bool) {
	onRole, offRole := b.cfg.Duty.OnRoleID, b.cfg.Duty.OffRoleID
	if onRole == "" || offRole == "" {
		if err := r.Respond(ctx, "Duty status is not configured on this server.", true); err != nil {
			log.Printf("discord: duty respond: %v", err)
		}
		return
	}

	add, remove := onRole, offRole
	reply := "You are now **On Duty**."
	if !onDuty {
		add, remove = offRole, onRole
		reply = "You are now **Off Duty**."
	}

	guildID := b.cfg.Discord.GuildID
	if err := b.sess.GuildMemberRoleAdd(guildID, actor.ID, add); err != nil {
		log.Printf("discord: duty role add for %s: %v", actor.Tag, err)
		b.dutyFailed(ctx, r)
		return
	}
	if err := b.sess.GuildMemberRoleRemove(guildID, actor.ID, remove); err != nil {
		log.Printf("discord: duty role remove for %s: %v", actor.Tag, err)
		b.dutyFailed(ctx, r)
		return
	}

	if err := r.Respond(ctx, reply, true); err != nil {
		log.Printf("discord: duty respond: %v", err)
	}
}

func (b *Bot) dutyFailed(ctx context.Context, r ticket.Responder) {
	if err := r.Respond(ctx, "Could not update your duty status. Check the bot's role permissions.", true); err != nil {
		log.Printf("discord: duty respond: %v", err)
	}
}

// interactionResponder implements ticket.Responder on top of a Discord
// interaction: an optional deferred acknowledgment followed by exactly one
// reply, delivered as an edit when deferred.
type interactionResponder struct {
	sess        session
	interaction *discordgo.Interaction

	mu       sync.Mutex
	deferred bool
}

func (r *interactionResponder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred {
		return nil
	}

	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := r.sess.InteractionRespond(r.interaction, resp); err != nil {
		return fmt.Errorf("discord: defer interaction: %w", err)
	}
	r.deferred = true
	return nil
}

func (r *interactionResponder) Respond(ctx context.Context, content string, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deferred {
		_, err := r.sess.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{Content: &content})
		if err != nil {
			return fmt.Errorf("discord: edit interaction response: %w", err)
		}
		return nil
	}

	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.sess.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("discord: respond to interaction: %w", err)
	}
	// Further replies edit the original response.
	r.deferred = true
	return nil
}
