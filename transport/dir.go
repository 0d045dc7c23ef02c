package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bitfsorg/libmsgstore-go/storage"
)

// Dir is a Transport backed by a local directory. Parts, message bodies and
// message metadata are blobs in a storage.FileStore spool, so a channel
// survives process restarts.
//
// Spool layout:
//
//	seq                      next id (decimal)
//	channel/{link}           Target JSON
//	part/{id}                uploaded, not yet sent part
//	msg/{channel}/{id}       message document bytes
//	meta/{channel}/{id}      Message JSON
type Dir struct {
	// MaxPartSize, when positive, rejects larger uploads with ErrPartTooLarge.
	MaxPartSize int64

	root      string
	store     storage.Store
	mu        sync.Mutex
	connected bool
}

var _ Transport = (*Dir)(nil)

// NewDir opens (creating if needed) a directory-backed channel store.
func NewDir(root string) (*Dir, error) {
	fs, err := storage.NewFileStore(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return &Dir{root: root, store: fs}, nil
}

func channelKey(link string) string { return "channel/" + link }
func partKey(id int64) string       { return "part/" + strconv.FormatInt(id, 10) }

func bodyKey(target int64, id MessageID) string {
	return fmt.Sprintf("msg/%d/%d", target, id)
}

func metaKey(target int64, id MessageID) string {
	return fmt.Sprintf("meta/%d/%d", target, id)
}

// next allocates an id. Must be called with d.mu held. The file lock makes
// allocation safe across processes sharing root.
func (d *Dir) next() (int64, error) {
	lock, err := acquireLock(filepath.Join(d.root, lockFile))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer releaseLock(lock)

	var cur int64
	raw, err := d.store.Get("seq")
	switch {
	case err == nil:
		cur, err = strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: corrupt sequence: %w", ErrInvalidResponse, err)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	cur++
	if err := d.store.Put("seq", []byte(strconv.FormatInt(cur, 10))); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return cur, nil
}

func (d *Dir) Connect(ctx context.Context, creds Credentials) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *Dir) ResolveTarget(ctx context.Context, link string) (Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return Target{}, ErrNotConnected
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return Target{}, ErrInvalidLink
	}

	raw, err := d.store.Get(channelKey(link))
	if err == nil {
		var t Target
		if err := json.Unmarshal(raw, &t); err != nil {
			return Target{}, fmt.Errorf("%w: channel record: %w", ErrInvalidResponse, err)
		}
		return t, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return Target{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	id, err := d.next()
	if err != nil {
		return Target{}, err
	}
	t := Target{ID: id, Title: link, Link: link}
	raw, err = json.Marshal(t)
	if err != nil {
		return Target{}, fmt.Errorf("transport: marshal channel: %w", err)
	}
	if err := d.store.Put(channelKey(link), raw); err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return t, nil
}

func (d *Dir) UploadPart(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return PartRef{}, ErrNotConnected
	}
	size := int64(len(data))
	if d.MaxPartSize > 0 && size > d.MaxPartSize {
		return PartRef{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrPartTooLarge, size, d.MaxPartSize)
	}

	id, err := d.next()
	if err != nil {
		return PartRef{}, err
	}
	if err := d.store.Put(partKey(id), data); err != nil {
		return PartRef{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	reportBlocks(progress, size, partSizeKB)

	return PartRef{ID: id, Name: name, Size: size, Parts: blockCount(size, partSizeKB)}, nil
}

func (d *Dir) Send(ctx context.Context, target Target, part PartRef) (*Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	data, err := d.store.Get(partKey(part.ID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown part %d", ErrInvalidResponse, part.ID)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	id, err := d.next()
	if err != nil {
		return nil, err
	}
	msg := &Message{
		ID:     MessageID(id),
		Target: target.ID,
		Media:  &Media{Name: part.Name, Size: int64(len(data))},
		Date:   time.Now().UTC().Truncate(time.Second),
	}
	meta, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal message: %w", err)
	}

	if err := d.store.Put(bodyKey(target.ID, msg.ID), data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if err := d.store.Put(metaKey(target.ID, msg.ID), meta); err != nil {
		_ = d.store.Delete(bodyKey(target.ID, msg.ID))
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	_ = d.store.Delete(partKey(part.ID))

	return msg, nil
}

func (d *Dir) GetMessages(ctx context.Context, target Target, ids []MessageID) ([]*Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	out := make([]*Message, len(ids))
	for i, id := range ids {
		raw, err := d.store.Get(metaKey(target.ID, id))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrInvalidResponse, id, err)
		}
		out[i] = &msg
	}
	return out, nil
}

func (d *Dir) DownloadMedia(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, ErrNotConnected
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Media == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNoMedia, msg.ID)
	}
	data, err := d.store.Get(bodyKey(msg.Target, msg.ID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: message %d", ErrMessageNotFound, msg.ID)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	reportBlocks(progress, int64(len(data)), 128)
	return data, nil
}

func (d *Dir) DeleteMessages(ctx context.Context, target Target, ids []MessageID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	for _, id := range ids {
		for _, key := range []string{metaKey(target.ID, id), bodyKey(target.ID, id)} {
			if err := d.store.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
			}
		}
	}
	return nil
}
