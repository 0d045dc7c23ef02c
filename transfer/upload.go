package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bitfsorg/libmsgstore-go/bridge"
	"github.com/bitfsorg/libmsgstore-go/storage"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// Upload reads the whole of src, optionally compresses and encrypts it,
// and sends it to the channel as one message per part. progress receives
// cumulative bytes over all parts; nil logs progress at debug level.
//
// Any cached payload for h is invalidated first. If a part fails, every
// message already sent by this call is deleted before the error is
// returned, and no address is returned.
func (e *Engine) Upload(ctx context.Context, h Handle, src io.Reader, name string, progress ProgressFunc) (*Address, error) {
	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	unlock := e.locks.lock(h)
	defer unlock()

	e.cache.Invalidate(h)

	log := e.log.With().
		Str("attempt", uuid.NewString()).
		Int64("handle", int64(h)).
		Str("name", name).
		Logger()

	plain, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}

	payload, err := e.encode(plain)
	if err != nil {
		return nil, err
	}

	parts, err := storage.Split(payload, e.opts.PartSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapacity, err)
	}

	total := int64(len(payload))
	progress = e.progressOrLog(progress, "upload", h)

	sent := make([]transport.MessageID, 0, len(parts))
	success := false
	defer func() {
		if success {
			return
		}
		e.rollback(ctx, h, sent, log)
	}()

	var base int64
	for i, part := range parts {
		partName := storage.PartName(name, i)
		offset := base
		onPart := func(done, _ int64) {
			progress(min(offset+done, total), total)
		}

		msg, err := bridge.Call(ctx, e.bridge, func(ctx context.Context) (*transport.Message, error) {
			ref, err := e.tr.UploadPart(ctx, part, partName, e.opts.PartSizeKB, onPart)
			if err != nil {
				return nil, err
			}
			return e.tr.Send(ctx, e.target, ref)
		})
		if err != nil {
			log.Error().Err(err).Int("part", i).Int("parts", len(parts)).Msg("upload part failed")
			return nil, classify(fmt.Sprintf("part %d/%d", i+1, len(parts)), err)
		}
		sent = append(sent, msg.ID)
		base += int64(len(part))
		progress(base, total)
	}

	addr := &Address{
		IDs:    sent,
		Size:   total,
		Digest: storage.ComputeRecombinationHash(parts),
	}
	success = true

	e.remember(name, addr)
	if e.opts.CacheOnUpload {
		e.cache.Put(h, plain)
	}
	e.uploads.Add(1)

	log.Info().Int("parts", len(parts)).Int64("bytes", total).Msg("uploaded")
	return addr.clone(), nil
}

// encode compresses then seals a plaintext payload.
func (e *Engine) encode(plain []byte) ([]byte, error) {
	payload, err := storage.Compress(plain, e.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: compress: %w", ErrIntegrity, err)
	}
	payload, err = e.opts.Sealer.Seal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt: %w", ErrIntegrity, err)
	}
	return payload, nil
}

// rollback deletes the messages an aborted upload already sent. Failures are
// logged, never returned, so the original error reaches the caller.
func (e *Engine) rollback(ctx context.Context, h Handle, sent []transport.MessageID, log zerolog.Logger) {
	defer e.cache.Invalidate(h)
	if len(sent) == 0 {
		return
	}
	e.rollbacks.Add(1)

	err := e.bridge.Do(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return e.tr.DeleteMessages(ctx, e.target, sent)
	})
	if err != nil {
		log.Warn().Err(err).Int("messages", len(sent)).Msg("rollback failed")
		return
	}
	log.Info().Int("messages", len(sent)).Msg("rolled back")
}
