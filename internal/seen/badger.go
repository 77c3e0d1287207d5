package seen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timshannon/badgerhold/v4"
)

type badgerRecord struct {
	Key    string `badgerhold:"key"`
	SeenAt time.Time
}

// BadgerStore keeps keys in an embedded badger database directory.
type BadgerStore struct {
	store *badgerhold.Store
}

func OpenBadger(dir string) (*BadgerStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("path is required")
	}
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store %s: %w", dir, err)
	}
	return &BadgerStore{store: store}, nil
}

func (s *BadgerStore) Exists(_ context.Context, key string) (bool, error) {
	var rec badgerRecord
	err := s.store.Get(key, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Insert(_ context.Context, key string) error {
	return s.store.Upsert(key, &badgerRecord{Key: key, SeenAt: time.Now().UTC()})
}

func (s *BadgerStore) Count(context.Context) (int, error) {
	n, err := s.store.Count(&badgerRecord{}, nil)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *BadgerStore) Close() error {
	return s.store.Close()
}
