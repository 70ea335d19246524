package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

// registerAttempts bounds the re-fetch-and-update cycles when concurrent
// callers register the same token. One retry is normally enough.
const registerAttempts = 3

var errRegisterRetriesExhausted = errors.New("token registration retries exhausted")

type DeviceService struct {
	repo   port.DeviceRepository
	logger *zap.Logger
}

func NewDeviceService(repo port.DeviceRepository, logger *zap.Logger) *DeviceService {
	return &DeviceService{repo: repo, logger: logger}
}

// RegisterToken upserts the registration for a push token. The token's
// unique constraint is the authoritative guard: an insert that loses the
// race is reinterpreted as "the row now exists" and retried as an update,
// so concurrent registrations of the same token all succeed and exactly one
// row survives. The admin flag is sticky upward; a later non-admin
// registration never demotes a token.
func (s *DeviceService) RegisterToken(ctx context.Context, token, deviceID string, isAdmin bool) (*domain.DeviceToken, error) {
	if token == "" {
		return nil, &domain.ValidationError{Reason: "token is required"}
	}
	if deviceID == "" {
		return nil, &domain.ValidationError{Reason: "device id is required"}
	}

	for attempt := 1; attempt <= registerAttempts; attempt++ {
		existing, err := s.repo.FindTokenByValue(ctx, token)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "find token", Err: err}
		}

		if existing != nil {
			admin := existing.IsAdmin || isAdmin
			ok, err := s.repo.UpdateToken(ctx, existing.ID, deviceID, admin)
			if err != nil {
				return nil, &domain.PersistenceError{Op: "update token", Err: err}
			}
			if ok {
				existing.DeviceID = deviceID
				existing.IsAdmin = admin
				return existing, nil
			}
			// Row disappeared between the find and the update; go around.
			continue
		}

		t := &domain.DeviceToken{Token: token, DeviceID: deviceID, IsAdmin: isAdmin}
		err = s.repo.InsertToken(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, port.ErrDuplicateToken) {
			return nil, &domain.PersistenceError{Op: "insert token", Err: err}
		}

		s.logger.Debug("lost token registration race, retrying",
			zap.String("device_id", deviceID),
			zap.Int("attempt", attempt))
	}

	return nil, &domain.PersistenceError{Op: "register token", Err: errRegisterRetriesExhausted}
}

// Unsubscribe removes the registration for a token. Returns false when no
// such token was registered.
func (s *DeviceService) Unsubscribe(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, &domain.ValidationError{Reason: "token is required"}
	}

	existing, err := s.repo.FindTokenByValue(ctx, token)
	if err != nil {
		return false, &domain.PersistenceError{Op: "find token", Err: err}
	}
	if existing == nil {
		return false, nil
	}

	if err := s.repo.RemoveToken(ctx, existing.ID); err != nil {
		return false, &domain.PersistenceError{Op: "remove token", Err: err}
	}

	s.logger.Info("device unsubscribed", zap.Int64("token_id", existing.ID))
	return true, nil
}

// ProvisionDeviceID mints an opaque identifier for a device that does not
// have one yet.
func (s *DeviceService) ProvisionDeviceID() string {
	return uuid.NewString()
}
