// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package journal records completed page uploads so an interrupted chapter
// upload can resume. Entries live in BadgerDB, keyed by chapter, page index
// and the SHA-256 of the source file, and are CBOR-encoded in deterministic
// core encoding. A page whose source file changed hashes differently and
// therefore misses the journal.
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/tomtom215/mangashelf/internal/logging"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal is closed")

// Record is one completed page upload.
type Record struct {
	ChapterID   string    `cbor:"1,keyasint"`
	Index       int       `cbor:"2,keyasint"`
	SHA256      string    `cbor:"3,keyasint"` // digest of the source page and its conversion settings
	ObjectKey   string    `cbor:"4,keyasint"`
	Width       int       `cbor:"5,keyasint"`
	Height      int       `cbor:"6,keyasint"`
	Bytes       int64     `cbor:"7,keyasint"`
	CompletedAt time.Time `cbor:"8,keyasint"`
}

// Journal is a badger-backed store of Records.
type Journal struct {
	db     *badger.DB
	enc    cbor.EncMode
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the journal at path. An empty path keeps it in memory.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	logging.Debug().Str("path", path).Msg("Upload journal opened")
	return &Journal{db: db, enc: enc}, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func chapterPrefix(chapterID string) []byte {
	return []byte("page/" + chapterID + "/")
}

func recordKey(chapterID string, index int, sha string) []byte {
	return []byte(fmt.Sprintf("page/%s/%06d/%s", chapterID, index, sha))
}

func (j *Journal) check() error {
	if j.closed {
		return ErrClosed
	}
	return nil
}

// Lookup returns the record for the exact (chapter, index, hash) triple.
func (j *Journal) Lookup(chapterID string, index int, sha string) (*Record, bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return nil, false, err
	}

	var rec Record
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(chapterID, index, sha))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("journal lookup: %w", err)
	}
	return &rec, true, nil
}

// Record stores rec, replacing any entry for the same page with a different hash.
func (j *Journal) Record(rec Record) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return err
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	data, err := j.enc.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}

	pagePrefix := []byte(fmt.Sprintf("page/%s/%06d/", rec.ChapterID, rec.Index))
	return j.db.Update(func(txn *badger.Txn) error {
		stale, err := keysWithPrefix(txn, pagePrefix)
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Set(recordKey(rec.ChapterID, rec.Index, rec.SHA256), data)
	})
}

// Completed returns the chapter's records ordered by page index.
func (j *Journal) Completed(chapterID string) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return nil, err
	}

	out := make([]Record, 0)
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := chapterPrefix(chapterID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal scan: %w", err)
	}
	return out, nil
}

// Forget removes every record for the chapter. It returns the number removed.
func (j *Journal) Forget(chapterID string) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return 0, err
	}

	var n int
	err := j.db.Update(func(txn *badger.Txn) error {
		keys, err := keysWithPrefix(txn, chapterPrefix(chapterID))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("journal forget: %w", err)
	}
	return n, nil
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// Close flushes and closes the database. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}
