package repositories

import (
	"circle-hub/contract"
	"circle-hub/domain"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// PresenceRepository keeps the last known presence of every user.
type PresenceRepository struct {
	db *badger.DB
}

func NewPresenceRepository(db *badger.DB) PresenceRepository {
	return PresenceRepository{db: db}
}

func presenceKey(userID string) []byte { return []byte("presence:" + userID) }

func (p PresenceRepository) SetPresence(ctx context.Context, presence domain.Presence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, presenceKey(presence.UserID), presence)
	})
}

func (p PresenceRepository) LastSeen(userID string) (domain.Presence, bool, error) {
	var presence domain.Presence
	var found bool
	err := p.db.View(func(txn *badger.Txn) error {
		var err error
		presence, found, err = getJSON[domain.Presence](txn, presenceKey(userID))
		return err
	})
	return presence, found, err
}

// PresenceStores writes a transition to every store and joins their errors.
type PresenceStores []contract.PresenceStore

func (s PresenceStores) SetPresence(ctx context.Context, presence domain.Presence) error {
	var errs []error
	for _, store := range s {
		if err := store.SetPresence(ctx, presence); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
