package repositories

import (
	"circle-hub/domain"
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// LocationRepository keeps the location history of every user, with a TTL.
type LocationRepository struct {
	db  *badger.DB
	ttl time.Duration
}

func NewLocationRepository(db *badger.DB, ttl time.Duration) LocationRepository {
	return LocationRepository{db: db, ttl: ttl}
}

func locationPrefix(userID string) []byte {
	return []byte("loc:" + userID + ":")
}

func (l LocationRepository) SaveLocation(ctx context.Context, snapshot domain.LocationSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := timeKey(string(locationPrefix(snapshot.UserID)), snapshot.At.UnixNano(), "")
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if l.ttl > 0 {
			entry = entry.WithTTL(l.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// History returns the last snapshots of a user, newest first.
func (l LocationRepository) History(userID string, limit int) ([]domain.LocationSnapshot, error) {
	var snapshots []domain.LocationSnapshot
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		snapshots, err = scanJSON[domain.LocationSnapshot](txn, locationPrefix(userID), true, limit)
		return err
	})
	return snapshots, err
}
