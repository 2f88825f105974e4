package ticket

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// MockPlatform implements Platform for testing. It holds an in-memory
// channel space and message history, records every outbound call, and lets
// tests inject errors per operation.
type MockPlatform struct {
	mu       sync.Mutex
	channels map[string]Channel
	history  map[string][]Message // newest-first, as the platform serves it
	nextID   int

	staff        map[string]bool // actor ID -> has staff role
	staffErr     error           // returned by ResolveStaff when set
	fetchErr     error
	createErr    error
	deleteErr    error
	listErr      error
	messagesErr  error
	sendErr      error
	sendFileErr  error
	welcomeErr   error
	sentMessages []SentMessage
	sentFiles    []SentFile
	welcomes     []string // channel IDs that received a welcome
	deleted      []string
}

// SentMessage records one SendMessage call.
type SentMessage struct {
	ChannelID string
	Content   string
}

// SentFile records one SendFile call with the file body drained.
type SentFile struct {
	ChannelID string
	Content   string
	FileName  string
	Body      string
}

// NewMockPlatform creates an empty MockPlatform.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		channels: make(map[string]Channel),
		history:  make(map[string][]Message),
		staff:    make(map[string]bool),
	}
}

// AddChannel seeds a channel into the mock channel space.
func (m *MockPlatform) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
}

// SetHistory seeds message history for a channel. Messages must be
// oldest-first; the mock serves them newest-first in bounded pages like
// the real platform.
func (m *MockPlatform) SetHistory(channelID string, msgs []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev := make([]Message, len(msgs))
	for i, msg := range msgs {
		rev[len(msgs)-1-i] = msg
	}
	m.history[channelID] = rev
}

// SetStaff marks an actor as holding the staff role.
func (m *MockPlatform) SetStaff(actorID string, staff bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[actorID] = staff
}

// SetStaffErr makes ResolveStaff fail, simulating an unresolvable role.
func (m *MockPlatform) SetStaffErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staffErr = err
}

// SetErr injects an error for one operation: "fetch", "create", "delete",
// "list", "messages", "send", "sendfile", "welcome".
func (m *MockPlatform) SetErr(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case "fetch":
		m.fetchErr = err
	case "create":
		m.createErr = err
	case "delete":
		m.deleteErr = err
	case "list":
		m.listErr = err
	case "messages":
		m.messagesErr = err
	case "send":
		m.sendErr = err
	case "sendfile":
		m.sendFileErr = err
	case "welcome":
		m.welcomeErr = err
	default:
		panic("mock platform: unknown op " + op)
	}
}

func (m *MockPlatform) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (m *MockPlatform) CreateChannel(ctx context.Context, spec CreateChannelSpec) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	ch := Channel{
		ID:       "chan-" + strconv.Itoa(m.nextID),
		Name:     spec.Name,
		ParentID: spec.CategoryID,
		Text:     true,
	}
	m.channels[ch.ID] = ch
	return &ch, nil
}

func (m *MockPlatform) DeleteChannel(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.channels[channelID]; !ok {
		return fmt.Errorf("mock platform: channel not found: %s", channelID)
	}
	delete(m.channels, channelID)
	m.deleted = append(m.deleted, channelID)
	return nil
}

func (m *MockPlatform) CategoryChannels(ctx context.Context, categoryID string) ([]Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Channel
	for _, ch := range m.channels {
		if ch.ParentID == categoryID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *MockPlatform) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messagesErr != nil {
		return nil, m.messagesErr
	}
	msgs := m.history[channelID]
	start := 0
	if beforeID != "" {
		start = len(msgs)
		for i, msg := range msgs {
			if msg.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	page := make([]Message, end-start)
	copy(page, msgs[start:end])
	return page, nil
}

func (m *MockPlatform) SendMessage(ctx context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentMessages = append(m.sentMessages, SentMessage{ChannelID: channelID, Content: content})
	return nil
}

func (m *MockPlatform) SendWelcome(ctx context.Context, channelID string, actor Actor, staffRoleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.welcomes = append(m.welcomes, channelID)
	return nil
}

func (m *MockPlatform) SendFile(ctx context.Context, channelID, content, fileName string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendFileErr != nil {
		return m.sendFileErr
	}
	m.sentFiles = append(m.sentFiles, SentFile{
		ChannelID: channelID,
		Content:   content,
		FileName:  fileName,
		Body:      string(body),
	})
	return nil
}

func (m *MockPlatform) ResolveStaff(ctx context.Context, actor Actor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staffErr != nil {
		return false, m.staffErr
	}
	return m.staff[actor.ID], nil
}

// --- Test helpers ---

// Channels returns a snapshot of the current channel space.
func (m *MockPlatform) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out
}

// HasChannel reports whether a channel still exists.
func (m *MockPlatform) HasChannel(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelID]
	return ok
}

// SentFiles returns all recorded file deliveries.
func (m *MockPlatform) SentFiles() []SentFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentFile, len(m.sentFiles))
	copy(out, m.sentFiles)
	return out
}

// SentMessages returns all recorded plain message sends.
func (m *MockPlatform) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sentMessages))
	copy(out, m.sentMessages)
	return out
}

// Welcomes returns the channel IDs that received a welcome message.
func (m *MockPlatform) Welcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.welcomes))
	copy(out, m.welcomes)
	return out
}

// Deleted returns the channel IDs removed so far.
func (m *MockPlatform) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// MockResponder implements Responder, recording the deferred state and
// every reply.
type MockResponder struct {
	mu        sync.Mutex
	deferred  bool
	ephemeral bool
	replies   []MockReply
}

// MockReply is one recorded Respond call.
type MockReply struct {
	Content   string
	Ephemeral bool
}

func (r *MockResponder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = true
	r.ephemeral = ephemeral
	return nil
}

func (r *MockResponder) Respond(ctx context.Context, content string, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, MockReply{Content: content, Ephemeral: ephemeral})
	return nil
}

// Deferred reports whether Defer was called.
func (r *MockResponder) Deferred() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

// LastReply returns the most recent reply. Returns zero value and false if
// nothing was sent.
func (r *MockResponder) LastReply() (MockReply, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return MockReply{}, false
	}
	return r.replies[len(r.replies)-1], true
}

// Replies returns a copy of all recorded replies.
func (r *MockResponder) Replies() []MockReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MockReply, len(r.replies))
	copy(out, r.replies)
	return out
}
