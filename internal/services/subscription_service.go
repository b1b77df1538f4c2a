// internal/services/subscription_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/apperrors"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

type SubscriptionService struct {
	gateway store.Gateway
}

func NewSubscriptionService(gateway store.Gateway) *SubscriptionService {
	return &SubscriptionService{gateway: gateway}
}

// Subscribe is idempotent: an existing active subscription is returned.
func (s *SubscriptionService) Subscribe(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	subscriberID = NormalizeBuyerID(subscriberID)
	if subscriberID == creatorID.String() {
		return nil, apperrors.New(apperrors.KindValidation, "cannot subscribe to yourself")
	}

	if _, err := s.gateway.GetAccount(ctx, creatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "creator not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if existing, err := s.gateway.GetActiveSubscription(ctx, subscriberID, creatorID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	sub := &models.Subscription{
		SubscriberID: subscriberID,
		CreatorID:    creatorID,
		Active:       true,
	}
	if err := s.gateway.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.gateway.GetActiveSubscription(ctx, subscriberID, creatorID)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"subscriber_id": subscriberID,
		"creator_id":    creatorID,
	}).Info("Subscription created")

	return sub, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, subscriberID string, creatorID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.gateway.DeactivateSubscription(ctx, NormalizeBuyerID(subscriberID), creatorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no active subscription")
		}
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) List(ctx context.Context, subscriberID string) ([]models.Subscription, error) {
	subs, err := s.gateway.ListSubscriptions(ctx, NormalizeBuyerID(subscriberID))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
