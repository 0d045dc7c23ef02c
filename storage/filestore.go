package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using the local filesystem.
// Values are stored at: {baseDir}/{shard}/{hex(key)}
// where shard is the first byte of SHA256(key) in hex, so keys sharing a
// prefix still spread across directories.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-based blob store. The directory is
// created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

// KeyToPath converts a key to its filesystem path.
func KeyToPath(baseDir, key string) string {
	sum := sha256.Sum256([]byte(key))
	shard := hex.EncodeToString(sum[:1])
	return filepath.Join(baseDir, shard, hex.EncodeToString([]byte(key)))
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

// Put stores data under key. The write goes to a temp file that is renamed
// into place, so a reader never observes a half-written value.
func (fs *FileStore) Put(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := KeyToPath(fs.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return nil
}

// Get retrieves the value stored under key.
func (fs *FileStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(KeyToPath(fs.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return data, nil
}

// Has checks if a value exists for key.
func (fs *FileStore) Has(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(KeyToPath(fs.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return true, nil
}

// Delete removes the value stored under key.
func (fs *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(KeyToPath(fs.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return nil
}

// Size returns the size in bytes of the value stored under key.
func (fs *FileStore) Size(key string) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(KeyToPath(fs.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return info.Size(), nil
}

// List returns all stored keys by scanning the shard directories.
func (fs *FileStore) List() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []string

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}

		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			key, err := hex.DecodeString(f.Name())
			if err != nil || len(key) == 0 {
				continue // temp files and strays
			}
			result = append(result, string(key))
		}
	}

	return result, nil
}
