package transfer

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitfsorg/libmsgstore-go/bridge"
	"github.com/bitfsorg/libmsgstore-go/storage"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// Download returns the payload stored at addr, serving it from the cache
// when possible. progress receives done bytes over all parts with total
// set to totalSize if positive and otherwise the summed media sizes; done
// is clamped to total when total is known. nil logs progress at debug
// level.
//
// Concurrent downloads of the same handle and address share one remote
// fetch; only the caller that started it receives progress. The shared
// fetch is not cancelled by any one caller: each caller stops waiting when
// its own ctx is done. The returned buffer is shared with the cache and
// must not be modified.
//
// On any failure after a cache miss the handle is invalidated and no
// partial payload is returned.
func (e *Engine) Download(ctx context.Context, h Handle, addr *Address, progress ProgressFunc, totalSize int64) ([]byte, error) {
	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	if addr == nil || len(addr.IDs) == 0 {
		return nil, ErrNoAddress
	}

	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(flightKey(h, addr), func() (any, error) {
		finish, err := e.begin()
		if err != nil {
			return nil, err
		}
		defer finish()
		return e.download(shared, h, addr, progress, totalSize)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// DownloadIDs is Download for a bare list of message ids, without size or
// digest checks.
func (e *Engine) DownloadIDs(ctx context.Context, h Handle, ids []transport.MessageID, progress ProgressFunc, totalSize int64) ([]byte, error) {
	return e.Download(ctx, h, &Address{IDs: ids}, progress, totalSize)
}

// flightKey covers every field that changes what a fetch verifies, so an
// unchecked fetch is never shared with a checked one.
func flightKey(h Handle, addr *Address) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(h), 10))
	b.WriteByte('/')
	b.WriteString(strconv.FormatInt(addr.Size, 10))
	b.WriteByte('/')
	b.WriteString(hex.EncodeToString(addr.Digest))
	b.WriteByte('/')
	for i, id := range addr.IDs {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}

func (e *Engine) download(ctx context.Context, h Handle, addr *Address, progress ProgressFunc, totalSize int64) ([]byte, error) {
	unlock := e.locks.lock(h)
	defer unlock()

	// A zero-length entry is the "empty" sentinel, never a hit.
	if buf, ok := e.cache.Get(h); ok && len(buf) > 0 {
		e.hits.Add(1)
		return buf, nil
	}

	log := e.log.With().Int64("handle", int64(h)).Int("parts", len(addr.IDs)).Logger()

	out, err := e.fetch(ctx, h, addr, e.progressOrLog(progress, "download", h), totalSize)
	if err != nil {
		e.cache.Invalidate(h)
		log.Error().Err(err).Msg("download failed")
		return nil, err
	}

	e.cache.Put(h, out)
	e.downloads.Add(1)
	log.Info().Int("bytes", len(out)).Msg("downloaded")
	return out, nil
}

func (e *Engine) fetch(ctx context.Context, h Handle, addr *Address, progress ProgressFunc, totalSize int64) ([]byte, error) {
	msgs, err := bridge.Call(ctx, e.bridge, func(ctx context.Context) ([]*transport.Message, error) {
		return e.tr.GetMessages(ctx, e.target, addr.IDs)
	})
	if err != nil {
		return nil, classify("get messages", err)
	}
	if len(msgs) != len(addr.IDs) {
		return nil, fmt.Errorf("%w: asked for %d messages, got %d",
			ErrTransport, len(addr.IDs), len(msgs))
	}

	total := totalSize
	for i, msg := range msgs {
		if msg == nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrNotFound, addr.IDs[i], transport.ErrMessageNotFound)
		}
		if msg.Media == nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrNotFound, msg.ID, transport.ErrNoMedia)
		}
		if totalSize <= 0 {
			total += msg.Media.Size
		}
	}

	// Unknown total: report the running count uncapped.
	report := func(done int64) {
		if total > 0 {
			done = min(done, total)
		}
		progress(done, total)
	}

	parts := make([][]byte, 0, len(msgs))
	var base int64
	for i, msg := range msgs {
		offset := base
		onPart := func(done, _ int64) {
			report(offset + done)
		}
		data, err := bridge.Call(ctx, e.bridge, func(ctx context.Context) ([]byte, error) {
			return e.tr.DownloadMedia(ctx, msg, onPart)
		})
		if err != nil {
			return nil, classify(fmt.Sprintf("part %d/%d", i+1, len(msgs)), err)
		}
		parts = append(parts, data)
		base += int64(len(data))
		report(base)
	}

	if addr.Size > 0 && base != addr.Size {
		return nil, fmt.Errorf("%w: got %d bytes, address records %d", ErrIntegrity, base, addr.Size)
	}

	joined, err := storage.RecombineParts(parts, addr.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return e.decode(joined)
}

// decode opens then decompresses a joined payload.
func (e *Engine) decode(payload []byte) ([]byte, error) {
	opened, err := e.opts.Sealer.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", ErrIntegrity, err)
	}
	plain, err := storage.Decompress(opened, e.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrIntegrity, err)
	}
	return plain, nil
}
