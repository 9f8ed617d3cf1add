package romstore

// badger.go implements the ROM interface over an embedded BadgerDB.  Suited
// for deployments with many cached types or large values, where one file per
// key stops being pleasant to operate.  Values are gob-encoded into a single
// Badger key each.

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a ROM backed by an embedded BadgerDB.
type Badger struct {
	db    *badger.DB
	owned bool
}

// OpenBadger opens (or creates) a Badger database at dir and wraps it.  The
// database is owned by the store and released by Close.
func OpenBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("romstore: open badger: %w", err)
	}
	return &Badger{db: db, owned: true}, nil
}

// NewBadger wraps an already-open database the caller keeps ownership of;
// Close is then a no-op.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// Read decodes the value stored under key into v.  Returns ErrNotFound when
// the key has never been written.
func (b *Badger) Read(key string, v any) error {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return gob.NewDecoder(bytes.NewReader(raw)).Decode(v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("romstore: read %s: %w", key, err)
	}
	return nil
}

// Write encodes v under key.
func (b *Badger) Write(key string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("romstore: encode %s: %w", key, err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("romstore: write %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database if this store owns it.
func (b *Badger) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
