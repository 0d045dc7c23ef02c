// Package transport defines the message channel that payload parts are
// stored in, and provides in-memory, on-disk and gateway implementations.
package transport

import (
	"context"
	"time"
)

// MessageID identifies a message within a target channel.
type MessageID int64

// Target is a resolved destination channel.
type Target struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Credentials authenticate the client session.
type Credentials struct {
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
	Session string `json:"session"`
}

// PartRef is the handle of an uploaded part that has not been sent yet.
type PartRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Parts int    `json:"parts"` // transfer blocks the part was uploaded in
}

// Media describes the document attached to a message.
type Media struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message is a sent message as seen by the channel.
type Message struct {
	ID     MessageID `json:"id"`
	Target int64     `json:"channel"`
	Media  *Media    `json:"media,omitempty"`
	Date   time.Time `json:"date"`
}

// ProgressFunc receives cumulative byte progress.
type ProgressFunc func(done, total int64)

// Transport is the remote message channel. Implementations need not be safe
// for concurrent use; callers drive them from a single goroutine.
type Transport interface {
	// Connect authenticates the session. It must be called before any other
	// method.
	Connect(ctx context.Context, creds Credentials) error

	// ResolveTarget resolves a channel link to a target.
	ResolveTarget(ctx context.Context, link string) (Target, error)

	// UploadPart uploads raw bytes as a named document, in blocks of
	// partSizeKB kilobytes. The name is a label only and never alters content.
	UploadPart(ctx context.Context, data []byte, name string, partSizeKB int, progress ProgressFunc) (PartRef, error)

	// Send posts an uploaded part to target as a new message.
	Send(ctx context.Context, target Target, part PartRef) (*Message, error)

	// GetMessages fetches messages by id. The result is index-aligned with
	// ids; a message that does not exist is a nil element.
	GetMessages(ctx context.Context, target Target, ids []MessageID) ([]*Message, error)

	// DownloadMedia downloads the document attached to msg.
	DownloadMedia(ctx context.Context, msg *Message, progress ProgressFunc) ([]byte, error)

	// DeleteMessages deletes messages by id. Ids that do not exist are
	// ignored.
	DeleteMessages(ctx context.Context, target Target, ids []MessageID) error
}

// blockCount returns how many partSizeKB blocks size bytes occupy.
func blockCount(size int64, partSizeKB int) int {
	if partSizeKB <= 0 {
		partSizeKB = 512
	}
	block := int64(partSizeKB) * 1024
	if size <= 0 {
		return 1
	}
	return int((size + block - 1) / block)
}

// reportBlocks invokes progress once per block. An empty input reports (0, 0).
func reportBlocks(progress ProgressFunc, size int64, partSizeKB int) {
	if progress == nil {
		return
	}
	if size == 0 {
		progress(0, 0)
		return
	}
	block := int64(partSizeKB) * 1024
	if block <= 0 {
		block = 512 * 1024
	}
	for done := min(block, size); ; done = min(done+block, size) {
		progress(done, size)
		if done == size {
			return
		}
	}
}
