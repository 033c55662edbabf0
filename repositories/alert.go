package repositories

import (
	"circle-hub/domain"
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// AlertRepository keeps every emergency alert. Alerts are overwritten when resolved, never deleted.
type AlertRepository struct {
	db *badger.DB
}

func NewAlertRepository(db *badger.DB) AlertRepository {
	return AlertRepository{db: db}
}

func alertKey(id uuid.UUID) []byte { return []byte("alert:" + id.String()) }

func (a AlertRepository) SaveAlert(ctx context.Context, alert domain.EmergencyAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, alertKey(alert.ID), alert)
	})
}

func (a AlertRepository) Alert(id uuid.UUID) (domain.EmergencyAlert, bool, error) {
	var alert domain.EmergencyAlert
	var found bool
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		alert, found, err = getJSON[domain.EmergencyAlert](txn, alertKey(id))
		return err
	})
	return alert, found, err
}

// Unresolved lists the alerts still waiting for a responder.
func (a AlertRepository) Unresolved() ([]domain.EmergencyAlert, error) {
	var alerts []domain.EmergencyAlert
	err := a.db.View(func(txn *badger.Txn) error {
		all, err := scanJSON[domain.EmergencyAlert](txn, []byte("alert:"), false, 0)
		for _, alert := range all {
			if !alert.Resolved {
				alerts = append(alerts, alert)
			}
		}
		return err
	})
	return alerts, err
}
