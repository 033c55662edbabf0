package repositories

import (
	"circle-hub/domain"
	"context"

	"github.com/dgraph-io/badger/v4"
)

// CallRepository is the call history. Each terminated call is written once per party
// under "call:{user_id}:{started_at_padded}:{call_id}" so that the history of a user
// is a single prefix scan.
type CallRepository struct {
	db *badger.DB
}

func NewCallRepository(db *badger.DB) CallRepository {
	return CallRepository{db: db}
}

func callPrefix(userID string) []byte {
	return []byte("call:" + userID + ":")
}

func (c CallRepository) SaveCall(ctx context.Context, call domain.CallSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		for _, userID := range call.Parties() {
			key := timeKey(string(callPrefix(userID)), call.StartedAt.UnixNano(), call.ID.String())
			if err := setJSON(txn, key, call); err != nil {
				return err
			}
		}
		return nil
	})
}

// History returns the last calls of a user, newest first.
func (c CallRepository) History(userID string, limit int) ([]domain.CallSession, error) {
	var calls []domain.CallSession
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		calls, err = scanJSON[domain.CallSession](txn, callPrefix(userID), true, limit)
		return err
	})
	return calls, err
}
