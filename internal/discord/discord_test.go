package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m8riozzz/Bot-M8rioo/internal/config"
	"github.com/m8riozzz/Bot-M8rioo/internal/ticket"
)

// --- Mock Discord session ---

type mockSession struct {
	mu            sync.Mutex
	opened        bool
	closeCalled   bool
	channels      map[string]*discordgo.Channel
	channelErr    error
	created       []discordgo.GuildChannelCreateData
	createErr     error
	deleted       []string
	deleteErr     error
	messages      []*discordgo.Message
	messagesErr   func() error // called per ChannelMessages call when set
	sentMessages  []sentMessage
	sendErr       error
	bulkDeleted   [][]string
	roles         []*discordgo.Role
	rolesErr      error
	roleAdds      []string
	roleRemoves   []string
	roleErr       error
	interactions  []*discordgo.InteractionResponse
	edits         []*discordgo.WebhookEdit
	presence      []string
	voiceJoins    []string
	guildChannels []*discordgo.Channel
	selfID        string
}

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

func newMockSession() *mockSession {
	return &mockSession{channels: make(map[string]*discordgo.Channel)}
}

func (m *mockSession) Open() error { m.mu.Lock(); defer m.mu.Unlock(); m.opened = true; return nil }
func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}
func (m *mockSession) AddHandler(handler interface{}) func() { return func() {} }

func (m *mockSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &discordgo.User{ID: m.selfID}, nil
}

func (m *mockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (m *mockSession) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guildChannels, nil
}

func (m *mockSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, data)
	ch := &discordgo.Channel{
		ID:       fmt.Sprintf("new-%d", len(m.created)),
		Name:     data.Name,
		ParentID: data.ParentID,
		Type:     data.Type,
	}
	m.channels[ch.ID] = ch
	return ch, nil
}

func (m *mockSession) ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.deleted = append(m.deleted, channelID)
	delete(m.channels, channelID)
	return nil, nil
}

func (m *mockSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messagesErr != nil {
		if err := m.messagesErr(); err != nil {
			return nil, err
		}
	}
	return m.messages, nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sentMessages = append(m.sentMessages, sentMessage{channelID: channelID, data: data})
	return &discordgo.Message{ID: "msg-123"}, nil
}

func (m *mockSession) ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkDeleted = append(m.bulkDeleted, messages)
	return nil
}

func (m *mockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, resp)
	return nil
}

func (m *mockSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, newresp)
	return nil, nil
}

func (m *mockSession) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	return m.roles, nil
}

func (m *mockSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleErr != nil {
		return m.roleErr
	}
	m.roleAdds = append(m.roleAdds, roleID)
	return nil
}

func (m *mockSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleErr != nil {
		return m.roleErr
	}
	m.roleRemoves = append(m.roleRemoves, roleID)
	return nil
}

func (m *mockSession) UpdateStreamingStatus(idle int, name string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence = append(m.presence, name)
	return nil
}

func (m *mockSession) ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceJoins = append(m.voiceJoins, cID)
	return nil, nil
}

func testConfig() *config.Config {
	cfg, err := config.Parse([]byte(`
discord:
  token: "abc123"
  guild_id: "guild-1"
  staff_role_id: "role-staff"
  ticket_category_id: "cat-1"
  panel_channel_id: "chan-panel"
  archive_channel_id: "chan-archive"
`))
	if err != nil {
		panic(err)
	}
	return cfg
}

func newTestBot(t *testing.T, sess *mockSession) *Bot {
	t.Helper()
	b, err := New(Opts{Config: testConfig(), Session: sess, Out: io.Discard})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.baseBackoff = time.Millisecond
	b.maxBackoff = 10 * time.Millisecond
	return b
}

// --- Tests ---

func TestBuildOverwrites(t *testing.T) {
	ow := buildOverwrites("guild-1", "user-1", "role-staff")
	if len(ow) != 3 {
		t.Fatalf("got %d overwrites, want exactly 3", len(ow))
	}

	everyone := ow[0]
	if everyone.ID != "guild-1" || everyone.Type != discordgo.PermissionOverwriteTypeRole {
		t.Errorf("everyone overwrite = %+v", everyone)
	}
	if everyone.Deny&int64(discordgo.PermissionViewChannel) == 0 {
		t.Error("everyone overwrite does not deny view")
	}

	requester := ow[1]
	if requester.ID != "user-1" || requester.Type != discordgo.PermissionOverwriteTypeMember {
		t.Errorf("requester overwrite = %+v", requester)
	}
	if requester.Allow&int64(discordgo.PermissionViewChannel) == 0 ||
		requester.Allow&int64(discordgo.PermissionSendMessages) == 0 {
		t.Error("requester overwrite does not allow view+send")
	}

	staff := ow[2]
	if staff.ID != "role-staff" || staff.Type != discordgo.PermissionOverwriteTypeRole {
		t.Errorf("staff overwrite = %+v", staff)
	}
	if staff.Allow != ow[1].Allow {
		t.Error("staff and requester overwrites grant different permissions")
	}
}

func TestCreateChannel(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(t, sess)

	ch, err := b.CreateChannel(context.Background(), ticket.CreateChannelSpec{
		Name:        "ticket-alice",
		CategoryID:  "cat-1",
		RequesterID: "user-1",
		StaffRoleID: "role-staff",
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if ch.Name != "ticket-alice" || ch.ParentID != "cat-1" {
		t.Errorf("channel = %+v", ch)
	}

	if len(sess.created) != 1 {
		t.Fatalf("created %d channels, want 1", len(sess.created))
	}
	data := sess.created[0]
	if data.Type != discordgo.ChannelTypeGuildText {
		t.Errorf("channel type = %v, want guild text", data.Type)
	}
	if len(data.PermissionOverwrites) != 3 {
		t.Errorf("got %d overwrites, want 3", len(data.PermissionOverwrites))
	}
}

func TestFetchChannel_NotFound(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(t, sess)

	ch, err := b.FetchChannel(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch != nil {
		t.Errorf("missing channel resolved to %+v", ch)
	}
}

func TestCategoryChannels_FiltersByParent(t *testing.T) {
	sess := newMockSession()
	sess.guildChannels = []*discordgo.Channel{
		{ID: "1", Name: "ticket-alice", ParentID: "cat-1", Type: discordgo.ChannelTypeGuildText},
		{ID: "2", Name: "general", ParentID: "cat-other", Type: discordgo.ChannelTypeGuildText},
	}
	b := newTestBot(t, sess)

	chans, err := b.CategoryChannels(context.Background(), "cat-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chans) != 1 || chans[0].Name != "ticket-alice" {
		t.Errorf("chans = %+v", chans)
	}
}

func TestMessages_MapsAttachments(t *testing.T) {
	sess := newMockSession()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sess.messages = []*discordgo.Message{
		{
			ID:        "m1",
			Content:   "see attached",
			Author:    &discordgo.User{ID: "u1", Username: "alice"},
			Timestamp: ts,
			Attachments: []*discordgo.MessageAttachment{
				{URL: "https://cdn.example/a.png"},
				{URL: "https://cdn.example/b.png"},
			},
		},
	}
	b := newTestBot(t, sess)

	msgs, err := b.Messages(context.Background(), "chan", 100, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.AuthorTag != "alice" || !m.Timestamp.Equal(ts) {
		t.Errorf("message = %+v", m)
	}
	if len(m.Attachments) != 2 || m.Attachments[0] != "https://cdn.example/a.png" {
		t.Errorf("attachments = %v", m.Attachments)
	}
}

func TestResolveStaff(t *testing.T) {
	sess := newMockSession()
	sess.roles = []*discordgo.Role{{ID: "role-staff", Name: "Staff"}}
	b := newTestBot(t, sess)

	staff, err := b.ResolveStaff(context.Background(), ticket.Actor{ID: "u1", Roles: []string{"role-staff"}})
	if err != nil || !staff {
		t.Errorf("staff member: (%v, %v), want (true, nil)", staff, err)
	}

	staff, err = b.ResolveStaff(context.Background(), ticket.Actor{ID: "u2", Roles: []string{"role-other"}})
	if err != nil || staff {
		t.Errorf("non-staff member: (%v, %v), want (false, nil)", staff, err)
	}
}

func TestResolveStaff_RoleMissingFailsClosed(t *testing.T) {
	sess := newMockSession()
	sess.roles = []*discordgo.Role{{ID: "role-other", Name: "Other"}}
	b := newTestBot(t, sess)

	_, err := b.ResolveStaff(context.Background(), ticket.Actor{ID: "u1", Roles: []string{"role-staff"}})
	if err == nil {
		t.Fatal("expected error for missing staff role, got nil")
	}
}

func TestInteractionResponder_DeferThenEdit(t *testing.T) {
	sess := newMockSession()
	r := &interactionResponder{sess: sess, interaction: &discordgo.Interaction{ID: "i1"}}

	if err := r.Defer(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if len(sess.interactions) != 1 ||
		sess.interactions[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("deferred response = %+v", sess.interactions)
	}

	if err := r.Respond(context.Background(), "done", false); err != nil {
		t.Fatal(err)
	}
	if len(sess.edits) != 1 || *sess.edits[0].Content != "done" {
		t.Fatalf("edit = %+v", sess.edits)
	}
}

func TestInteractionResponder_DirectEphemeral(t *testing.T) {
	sess := newMockSession()
	r := &interactionResponder{sess: sess, interaction: &discordgo.Interaction{ID: "i1"}}

	if err := r.Respond(context.Background(), "hi", true); err != nil {
		t.Fatal(err)
	}
	if len(sess.interactions) != 1 {
		t.Fatalf("got %d responses", len(sess.interactions))
	}
	resp := sess.interactions[0]
	if resp.Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Errorf("type = %v", resp.Type)
	}
	if resp.Data == nil || resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("response is not ephemeral")
	}
}

func TestHandleDuty(t *testing.T) {
	sess := newMockSession()
	cfg := testConfig()
	cfg.Duty.OnRoleID = "role-on"
	cfg.Duty.OffRoleID = "role-off"
	b, err := New(Opts{Config: cfg, Session: sess, Out: io.Discard})
	if err != nil {
		t.Fatal(err)
	}

	r := &interactionResponder{sess: sess, interaction: &discordgo.Interaction{ID: "i1"}}
	b.handleDuty(context.Background(), ticket.Actor{ID: "u1", Tag: "alice"}, r, true)

	if len(sess.roleAdds) != 1 || sess.roleAdds[0] != "role-on" {
		t.Errorf("role adds = %v, want [role-on]", sess.roleAdds)
	}
	if len(sess.roleRemoves) != 1 || sess.roleRemoves[0] != "role-off" {
		t.Errorf("role removes = %v, want [role-off]", sess.roleRemoves)
	}
}

func TestPublishPanel(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(t, sess)

	if err := b.PublishPanel(context.Background()); err != nil {
		t.Fatalf("PublishPanel: %v", err)
	}

	if len(sess.sentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sess.sentMessages))
	}
	sent := sess.sentMessages[0]
	if sent.channelID != "chan-panel" {
		t.Errorf("panel posted to %s", sent.channelID)
	}
	if len(sent.data.Embeds) != 1 || sent.data.Embeds[0].Title != panelTitle {
		t.Errorf("panel embeds = %+v", sent.data.Embeds)
	}
	if len(sent.data.Components) != 1 {
		t.Fatalf("panel has %d component rows, want 1", len(sent.data.Components))
	}
	row, ok := sent.data.Components[0].(discordgo.ActionsRow)
	if !ok {
		t.Fatalf("component row type %T", sent.data.Components[0])
	}
	btn, ok := row.Components[0].(discordgo.Button)
	if !ok || btn.CustomID != createTicketID {
		t.Errorf("panel button = %+v", row.Components[0])
	}
}

func TestPublishPanel_PurgesStalePanels(t *testing.T) {
	sess := newMockSession()
	sess.messages = []*discordgo.Message{
		{ID: "old-1", Author: &discordgo.User{ID: "bot-1"},
			Embeds: []*discordgo.MessageEmbed{{Title: panelTitle}}},
		{ID: "user-msg", Author: &discordgo.User{ID: "u1"}},
	}
	b := newTestBot(t, sess)
	b.mu.Lock()
	b.botUserID = "bot-1"
	b.mu.Unlock()

	if err := b.PublishPanel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sess.bulkDeleted) != 1 || len(sess.bulkDeleted[0]) != 1 || sess.bulkDeleted[0][0] != "old-1" {
		t.Errorf("bulk deleted = %v, want [[old-1]]", sess.bulkDeleted)
	}
}

func TestPublishPanel_ResolvesSelfOverREST(t *testing.T) {
	sess := newMockSession()
	sess.selfID = "bot-1"
	sess.messages = []*discordgo.Message{
		{ID: "old-1", Author: &discordgo.User{ID: "bot-1"},
			Embeds: []*discordgo.MessageEmbed{{Title: panelTitle}}},
	}
	b := newTestBot(t, sess)

	if err := b.PublishPanel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sess.bulkDeleted) != 1 {
		t.Errorf("stale panel not purged without a gateway identity")
	}
	if got := b.BotUserID(); got != "bot-1" {
		t.Errorf("botUserID = %q, want bot-1", got)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(t, sess)

	var calls int
	err := b.retryOnRateLimit(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetryOnRateLimit_NonRateLimitNotRetried(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(t, sess)

	var calls int
	err := b.retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
