package repositories

import (
	"circle-hub/domain"
	"circle-hub/errors"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// ProfileRepository keeps the user profiles and the circles they belong to.
// It is the profile directory the authenticator and the emergency broadcaster read from.
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

func profileKey(userID string) []byte  { return []byte("profile:" + userID) }
func circleKey(circleID string) []byte { return []byte("circle:" + circleID) }

func (p ProfileRepository) SaveProfile(profile domain.Profile) error {
	return p.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, profileKey(profile.UserID), profile)
	})
}

func (p ProfileRepository) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}
	var profile domain.Profile
	err := p.db.View(func(txn *badger.Txn) error {
		var found bool
		var err error
		profile, found, err = getJSON[domain.Profile](txn, profileKey(userID))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", errors.ErrProfileNotFound, userID)
		}
		return nil
	})
	return profile, err
}

// SaveCircle stores the circle and adds it to the profile of every known member,
// so that they join its room on their next connection.
func (p ProfileRepository) SaveCircle(circle domain.Circle) error {
	return p.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, circleKey(circle.ID), circle); err != nil {
			return err
		}
		for _, memberID := range circle.MemberIDs {
			profile, found, err := getJSON[domain.Profile](txn, profileKey(memberID))
			if err != nil {
				return err
			}
			if !found || slices.Contains(profile.CircleIDs, circle.ID) {
				continue
			}
			profile.CircleIDs = append(profile.CircleIDs, circle.ID)
			if err = setJSON(txn, profileKey(memberID), profile); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p ProfileRepository) Circle(circleID string) (domain.Circle, bool, error) {
	var circle domain.Circle
	var found bool
	err := p.db.View(func(txn *badger.Txn) error {
		var err error
		circle, found, err = getJSON[domain.Circle](txn, circleKey(circleID))
		return err
	})
	return circle, found, err
}

// CircleMembers returns the distinct members of the given circles. Unknown circles are ignored.
func (p ProfileRepository) CircleMembers(ctx context.Context, circleIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var members []string
	err := p.db.View(func(txn *badger.Txn) error {
		for _, circleID := range circleIDs {
			circle, found, err := getJSON[domain.Circle](txn, circleKey(circleID))
			if err != nil {
				return err
			}
			if found {
				members = append(members, circle.MemberIDs...)
			}
		}
		return nil
	})
	return lo.Uniq(members), err
}

// DeviceTokens returns the push tokens of the given users. Unknown users are ignored.
func (p ProfileRepository) DeviceTokens(ctx context.Context, userIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tokens []string
	err := p.db.View(func(txn *badger.Txn) error {
		for _, userID := range userIDs {
			profile, found, err := getJSON[domain.Profile](txn, profileKey(userID))
			if err != nil {
				return err
			}
			if found {
				tokens = append(tokens, profile.DeviceTokens...)
			}
		}
		return nil
	})
	return lo.Uniq(tokens), err
}

// Profiles lists every stored profile, used by the inspection tool.
func (p ProfileRepository) Profiles() ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := p.db.View(func(txn *badger.Txn) error {
		var err error
		profiles, err = scanJSON[domain.Profile](txn, []byte("profile:"), false, 0)
		return err
	})
	return profiles, err
}
