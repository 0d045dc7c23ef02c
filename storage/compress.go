package storage

import (
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"
	"strings"
)

// Compression selects the optional whole-payload compression stage.
type Compression int32

const (
	CompressNone Compression = 0
	CompressLZW  Compression = 1
	CompressGZIP Compression = 2
)

// MaxDecompressedSize bounds decompression output so a corrupted or hostile
// payload cannot exhaust memory. Three full parts.
const MaxDecompressedSize = 3 * DefaultPartSize

// ParseCompression maps a config value ("", "none", "lzw", "gzip") to a scheme.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressNone, nil
	case "lzw":
		return CompressLZW, nil
	case "gzip":
		return CompressGZIP, nil
	default:
		return CompressNone, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressLZW:
		return "lzw"
	case CompressGZIP:
		return "gzip"
	default:
		return fmt.Sprintf("compression(%d)", int32(c))
	}
}

// Compress compresses data using the specified scheme.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		return compressLZW(data)
	case CompressGZIP:
		return compressGZIP(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

// Decompress decompresses data using the specified scheme.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		return decompressLZW(data)
	case CompressGZIP:
		return decompressGZIP(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

func compressLZW(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, 8)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZW(data []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), lzw.LSB, 8)
	defer r.Close()
	return readLimited(r)
}

func compressGZIP(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressGZIP(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r)
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > MaxDecompressedSize {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}
