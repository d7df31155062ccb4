// Package badger is an embedded key-value progress store built on
// dgraph-io/badger. Records are JSON values under "progress:<user>:<video>".
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// maxConflictRetries bounds optimistic transaction retries on concurrent upserts.
const maxConflictRetries = 16

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens the database in dir. An empty dir opens an in-memory database.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil            // silence badger's internal logging
	opts.SyncWrites = true       // progress must survive a crash once acknowledged
	opts.CompactL0OnClose = true // faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("badger progress store opened", "path", dir)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports an error once the database has been closed.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// GetProgress returns the record for (userID, videoID).
func (s *Store) GetProgress(_ context.Context, userID, videoID string) (*domain.VideoProgress, error) {
	var p *domain.VideoProgress
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = s.read(txn, store.ProgressKey(userID, videoID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// ListProgress scans the user's key prefix and returns the records most
// recently updated first.
func (s *Store) ListProgress(_ context.Context, userID string) ([]*domain.VideoProgress, error) {
	prefix := store.UserProgressPrefix(userID)
	list := []*domain.VideoProgress{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			p, err := s.decode(it.Item())
			if err != nil {
				return err
			}
			list = append(list, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	slices.SortStableFunc(list, func(a, b *domain.VideoProgress) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.VideoID, b.VideoID)
	})
	return list, nil
}

// UpsertProgress writes the record unless the stored one is newer. The read
// and the write share one transaction; conflicting transactions are retried.
func (s *Store) UpsertProgress(_ context.Context, in *domain.VideoProgress) (*domain.VideoProgress, error) {
	p, err := store.Prepare(in)
	if err != nil {
		return nil, err
	}
	key := store.ProgressKey(p.UserID, p.VideoID)

	for range maxConflictRetries {
		var result *domain.VideoProgress
		err = s.db.Update(func(txn *badger.Txn) error {
			current, err := s.read(txn, key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			case !p.NewerThan(current):
				result = current
				return nil
			}

			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal progress: %w", err)
			}
			result = p
			return txn.Set(key, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("upsert progress: %w", err)
		}
		if result != p {
			s.logger.Debug("stale progress write ignored", "user_id", p.UserID, "video_id", p.VideoID)
		}
		return result, nil
	}
	return nil, fmt.Errorf("upsert progress: %w", err)
}

// DeleteProgress removes a record.
func (s *Store) DeleteProgress(_ context.Context, userID, videoID string) error {
	key := store.ProgressKey(userID, videoID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrProgressNotFound
	}
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *Store) read(txn *badger.Txn, key []byte) (*domain.VideoProgress, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return s.decode(item)
}

// decode unmarshals a stored record. Intervals go through the lenient
// decoder so a damaged pair cannot make the whole record unreadable.
func (s *Store) decode(item *badger.Item) (*domain.VideoProgress, error) {
	var p *domain.VideoProgress
	err := item.Value(func(val []byte) error {
		var raw struct {
			domain.VideoProgress
			Intervals json.RawMessage `json:"intervals"`
		}
		if err := json.Unmarshal(val, &raw); err != nil {
			return fmt.Errorf("decode %s: %w", item.Key(), err)
		}

		rec := raw.VideoProgress
		set, dropped, err := tracking.DecodeWatchedSet(raw.Intervals)
		if err != nil {
			set = tracking.WatchedSet{}
			dropped = -1
		}
		if dropped != 0 {
			s.logger.Debug("repaired stored intervals", "key", string(item.Key()), "dropped", dropped)
		}
		rec.Intervals = set
		rec.Normalize()
		p = &rec
		return nil
	})
	return p, err
}
