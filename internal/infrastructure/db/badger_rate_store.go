package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
)

// BadgerRateStore implements the rate store interface using BadgerDB
type BadgerRateStore struct {
	db *badger.DB
}

// NewBadgerRateStore creates a new BadgerDB rate store
func NewBadgerRateStore(db *badger.DB) *BadgerRateStore {
	return &BadgerRateStore{db: db}
}

// OpenBadger opens the database at path, or an in-memory one when path is empty
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}

// storedRate is the JSON value kept under each key. A null rate marks the pair
// as confirmed unavailable.
type storedRate struct {
	Rate decimal.NullDecimal `json:"rate"`
}

func rateKey(date time.Time, currency entity.Currency) []byte {
	return []byte(fmt.Sprintf("rate:%s:%s", currency, date.Format(entity.DateLayout)))
}

// Get returns the stored outcome for a (date, currency) pair
func (s *BadgerRateStore) Get(ctx context.Context, date time.Time, currency entity.Currency) (entity.RateLookup, error) {
	var record storedRate

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rateKey(date, currency))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return entity.LookupNotFound(), nil
	}

	if err != nil {
		return entity.LookupNotFound(), fmt.Errorf("failed to retrieve rate: %w", err)
	}

	return entity.LookupFromRecord(record.Rate), nil
}

// Put records the outcome for a pair unless one is already stored
func (s *BadgerRateStore) Put(ctx context.Context, date time.Time, currency entity.Currency, rate decimal.NullDecimal) error {
	data, err := json.Marshal(storedRate{Rate: rate})
	if err != nil {
		return fmt.Errorf("failed to marshal rate: %w", err)
	}

	key := rateKey(date, currency)
	insert := func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	}

	err = s.db.Update(insert)
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent writer committed the key first; the retry sees it and keeps it
		err = s.db.Update(insert)
	}

	if err != nil {
		return fmt.Errorf("failed to store rate: %w", err)
	}

	return nil
}
