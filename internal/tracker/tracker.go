// File: internal/tracker/tracker.go
package tracker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// Service manages the set of tracked addresses
type Service struct {
	storage storage.Storage
	feed    kaiascan.Client
	logger  *logrus.Logger
}

// NewService creates a new tracking service
func NewService(store storage.Storage, feed kaiascan.Client) *Service {
	return &Service{
		storage: store,
		feed:    feed,
		logger:  utils.GetLogger(),
	}
}

// Track registers an address for a subscriber. The checkpoint is seeded from
// the address's newest transaction so the sweep only reports activity that
// happens after registration; re-tracking an existing address re-seeds it.
// When the feed cannot be reached the address is still registered, with a
// sentinel checkpoint that makes any later transaction count as new.
func (s *Service) Track(ctx context.Context, subscriberID, address, label string) (*models.TrackedAddress, error) {
	if !utils.IsValidAddress(address) {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "invalid address format", address)
	}

	normalized := utils.NormalizeAddress(address)
	if label == "" {
		label = normalized
	}

	checkpoint := models.Checkpoint{
		Hash: models.CheckpointNone,
		Time: time.Now().UTC(),
	}

	latest, err := s.feed.LatestTransaction(ctx, normalized)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"address":    normalized,
			"error":      err.Error(),
		}).Warn("Checkpoint seeding failed, falling back to sentinel")
	} else if latest != nil {
		checkpoint = models.Checkpoint{
			Hash: latest.Hash,
			Time: latest.Timestamp,
		}
	}

	now := time.Now().UTC()
	row := &models.TrackedAddress{
		SubscriberID:   subscriberID,
		Address:        normalized,
		Label:          label,
		CheckpointHash: checkpoint.Hash,
		CheckpointTime: checkpoint.Time,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.storage.UpsertTrackedAddress(ctx, row); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"subscriber": subscriberID,
		"address":    normalized,
		"label":      label,
	}).Info("Address tracked")

	return row, nil
}

// List returns the subscriber's tracked addresses in registration order
func (s *Service) List(ctx context.Context, subscriberID string) ([]*models.TrackedAddress, error) {
	return s.storage.ListTrackedAddresses(ctx, subscriberID)
}

// Untrack removes the subscriber's entry whose address or label equals
// identifier. Identifiers in address form are normalized to lowercase the
// same way Track stores them; labels match verbatim. The result reports
// whether anything was removed.
func (s *Service) Untrack(ctx context.Context, subscriberID, identifier string) (bool, error) {
	if utils.IsValidAddress(identifier) {
		identifier = utils.NormalizeAddress(identifier)
	}

	removed, err := s.storage.RemoveTrackedAddress(ctx, subscriberID, identifier)
	if err != nil {
		return false, err
	}

	if removed {
		s.logger.WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"identifier": identifier,
		}).Info("Address untracked")
	}

	return removed, nil
}
