package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"lighter-grid-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of the FillRepository.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository creates and returns a new repository instance connected to a BadgerDB database.
func NewBadgerRepository(dbPath string) (FillRepository, error) {
	return openBadger(badger.DefaultOptions(dbPath))
}

func openBadger(opts badger.Options) (*badgerRepository, error) {
	// Disable Badger's own logging to keep our app's logs clean.
	// Errors will still be returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

// Keys sort by detection time within a run, so a prefix scan yields fills in order.
func fillPrefix(runID string) []byte {
	return []byte(fmt.Sprintf("fill/%s/", runID))
}

func fillKey(f models.FillRecord) []byte {
	return []byte(fmt.Sprintf("fill/%s/%020d/%020d", f.RunID, f.DetectedAt.UnixNano(), f.ClientOrderIndex))
}

func summaryKey(runID string) []byte {
	return []byte("summary/" + runID)
}

// SaveFill marshals the fill into JSON and stores it under a time-ordered key.
func (r *badgerRepository) SaveFill(fill models.FillRecord) error {
	if fill.RunID == "" {
		return errors.New("fill has no run id")
	}
	data, err := json.Marshal(fill)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fillKey(fill), data)
	})
}

// SaveSummary atomically saves the run summary.
func (r *badgerRepository) SaveSummary(summary models.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(summaryKey(summary.RunID), data)
	})
}

// LoadFills scans all fills of a run.
func (r *badgerRepository) LoadFills(runID string) ([]models.FillRecord, error) {
	fills := make([]models.FillRecord, 0)
	prefix := fillPrefix(runID)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var f models.FillRecord
				if err := json.Unmarshal(val, &f); err != nil {
					return err
				}
				fills = append(fills, f)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fills, nil
}

// LoadSummary loads the summary of a run.
// If the key is not found, it returns (nil, nil).
func (r *badgerRepository) LoadSummary(runID string) (*models.RunSummary, error) {
	var summary models.RunSummary

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(summaryKey(runID))
		if err != nil {
			// Checked outside the transaction.
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("summary value is empty in database")
			}
			return json.Unmarshal(val, &summary)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Close gracefully closes the connection to the database.
func (r *badgerRepository) Close() error {
	return r.db.Close()
}
