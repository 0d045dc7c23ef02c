package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Transport. Every channel link resolves to its own
// channel; message ids are sequential per process.
type Memory struct {
	// MaxPartSize, when positive, rejects larger uploads with ErrPartTooLarge.
	MaxPartSize int64

	mu        sync.Mutex
	connected bool
	nextID    int64
	channels  map[string]Target
	pending   map[int64][]byte // uploaded, not yet sent
	messages  map[msgKey]*storedMessage
	now       func() time.Time
}

type msgKey struct {
	target int64
	id     MessageID
}

type storedMessage struct {
	msg  Message
	data []byte
}

var _ Transport = (*Memory)(nil)

// NewMemory creates an empty in-memory transport.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]Target),
		pending:  make(map[int64][]byte),
		messages: make(map[msgKey]*storedMessage),
		now:      time.Now,
	}
}

func (m *Memory) Connect(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Memory) ResolveTarget(ctx context.Context, link string) (Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return Target{}, ErrNotConnected
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return Target{}, ErrInvalidLink
	}
	if t, ok := m.channels[link]; ok {
		return t, nil
	}
	m.nextID++
	t := Target{ID: m.nextID, Title: link, Link: link}
	m.channels[link] = t
	return t, nil
}

func (m *Memory) UploadPart(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return PartRef{}, ErrNotConnected
	}
	size := int64(len(data))
	if m.MaxPartSize > 0 && size > m.MaxPartSize {
		return PartRef{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrPartTooLarge, size, m.MaxPartSize)
	}

	m.nextID++
	m.pending[m.nextID] = append([]byte(nil), data...)
	reportBlocks(progress, size, partSizeKB)

	return PartRef{ID: m.nextID, Name: name, Size: size, Parts: blockCount(size, partSizeKB)}, nil
}

func (m *Memory) Send(ctx context.Context, target Target, part PartRef) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrNotConnected
	}
	data, ok := m.pending[part.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown part %d", ErrInvalidResponse, part.ID)
	}
	delete(m.pending, part.ID)

	m.nextID++
	msg := Message{
		ID:     MessageID(m.nextID),
		Target: target.ID,
		Media:  &Media{Name: part.Name, Size: int64(len(data))},
		Date:   m.now(),
	}
	m.messages[msgKey{target.ID, msg.ID}] = &storedMessage{msg: msg, data: data}

	out := msg
	return &out, nil
}

func (m *Memory) GetMessages(ctx context.Context, target Target, ids []MessageID) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrNotConnected
	}
	out := make([]*Message, len(ids))
	for i, id := range ids {
		if sm, ok := m.messages[msgKey{target.ID, id}]; ok {
			msg := sm.msg
			out[i] = &msg
		}
	}
	return out, nil
}

func (m *Memory) DownloadMedia(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrNotConnected
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Media == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNoMedia, msg.ID)
	}
	sm, ok := m.messages[msgKey{msg.Target, msg.ID}]
	if !ok {
		return nil, fmt.Errorf("%w: message %d", ErrMessageNotFound, msg.ID)
	}
	reportBlocks(progress, int64(len(sm.data)), 128)
	return append([]byte{}, sm.data...), nil
}

func (m *Memory) DeleteMessages(ctx context.Context, target Target, ids []MessageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	for _, id := range ids {
		delete(m.messages, msgKey{target.ID, id})
	}
	return nil
}

// Len returns the number of stored messages across all channels.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Has reports whether message id exists in target.
func (m *Memory) Has(target Target, id MessageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.messages[msgKey{target.ID, id}]
	return ok
}

// Pending returns the number of uploaded parts that were never sent.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
