package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"fxwatch/internal/domain"
)

const userPrefix = "user:"

// userKey formats the key of a user record.
// Format: user:{userID}
func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%d", userPrefix, id))
}

// RegisterUser creates the user if it does not exist yet.
func (r *BadgerRepository) RegisterUser(ctx context.Context, id int64, name string) (domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		user    domain.User
		created bool
	)
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := getJSON(txn, userKey(id), &user)
		if err != nil || found {
			return err
		}
		user = domain.User{
			ID:            id,
			Name:          name,
			JoinedAt:      time.Now(),
			Subscriptions: []domain.Subscription{},
		}
		created = true
		return setJSON(txn, userKey(id), user)
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", id).Error("Failed to register user")
		return domain.User{}, false, fmt.Errorf("failed to register user %d: %w", id, err)
	}
	if created {
		r.log.WithFields(logrus.Fields{"user_id": id, "name": name}).Info("New user registered")
	}
	return user, created, nil
}

// GetUser loads a user by id.
func (r *BadgerRepository) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getJSON(txn, userKey(id), &user)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every user ordered by id.
func (r *BadgerRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(userPrefix), false, func(_ []byte, u domain.User) (bool, error) {
			users = append(users, u)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	// Keys sort lexically ("user:10" < "user:9").
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Subscribe upserts the user's subscription to sourceID.
func (r *BadgerRepository) Subscribe(ctx context.Context, userID int64, sourceID string, tags []string) (domain.Subscription, error) {
	var sub domain.Subscription
	err := r.updateUser(userID, func(u *domain.User) error {
		sub = u.Subscribe(sourceID, tags)
		return nil
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to subscribe user %d to %s: %w", userID, sourceID, err)
	}

	filter := "ALL"
	if !sub.All() {
		filter = strings.Join(sub.Tags, ", ")
	}
	r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"source":  sourceID,
		"tags":    filter,
	}).Info("Subscription updated")
	return sub, nil
}

// Unsubscribe removes the subscription to sourceID, or only some of its tags.
func (r *BadgerRepository) Unsubscribe(ctx context.Context, userID int64, sourceID string, tags []string) error {
	err := r.updateUser(userID, func(u *domain.User) error {
		return u.Unsubscribe(sourceID, tags)
	})
	if err != nil {
		return fmt.Errorf("failed to unsubscribe user %d from %s: %w", userID, sourceID, err)
	}
	r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"source":  sourceID,
	}).Info("Subscription removed")
	return nil
}

// GetRecipients returns the users that want an article from sourceID with articleTags.
func (r *BadgerRepository) GetRecipients(ctx context.Context, sourceID string, articleTags []string) ([]int64, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	recipients := []int64{}
	for _, u := range users {
		if u.Wants(sourceID, articleTags) {
			recipients = append(recipients, u.ID)
		}
	}
	return recipients, nil
}

// updateUser applies fn to the stored user inside one transaction.
func (r *BadgerRepository) updateUser(id int64, fn func(*domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.Update(func(txn *badger.Txn) error {
		var user domain.User
		found, err := getJSON(txn, userKey(id), &user)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUserNotFound
		}
		if err := fn(&user); err != nil {
			return err
		}
		return setJSON(txn, userKey(id), user)
	})
}
