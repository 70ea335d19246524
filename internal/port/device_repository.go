package port

import (
	"context"
	"errors"

	"github.com/freshmart/order-core/internal/core/domain"
)

// ErrDuplicateToken is the store's uniqueness-violation signal for the
// token column. The registry treats it as "somebody else won the race".
var ErrDuplicateToken = errors.New("device token already registered")

type DeviceRepository interface {
	// FindTokenByValue returns (nil, nil) when absent.
	FindTokenByValue(ctx context.Context, token string) (*domain.DeviceToken, error)

	// InsertToken fills in the assigned id, or returns an error wrapping
	// ErrDuplicateToken when a row for the token already exists.
	InsertToken(ctx context.Context, t *domain.DeviceToken) error

	// UpdateToken returns false when the row no longer exists.
	UpdateToken(ctx context.Context, id int64, deviceID string, isAdmin bool) (bool, error)

	// ListTokens is a snapshot read of the current audience.
	ListTokens(ctx context.Context, audience domain.Audience) ([]domain.DeviceToken, error)

	// RemoveToken detaches any recipient rows referencing the token and
	// deletes it, as one unit.
	RemoveToken(ctx context.Context, id int64) error
}
