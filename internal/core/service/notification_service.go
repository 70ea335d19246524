package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

type NotificationService struct {
	devices port.DeviceRepository
	notifs  port.NotificationRepository
	gateway port.PushGateway
	logger  *zap.Logger

	sendLimit int
}

func NewNotificationService(devices port.DeviceRepository, notifs port.NotificationRepository, gateway port.PushGateway, logger *zap.Logger, sendLimit int) *NotificationService {
	if sendLimit <= 0 {
		sendLimit = 1
	}
	return &NotificationService{
		devices:   devices,
		notifs:    notifs,
		gateway:   gateway,
		logger:    logger,
		sendLimit: sendLimit,
	}
}

// Dispatch sends title/message to every token registered for the audience
// at the moment of the snapshot read. Each send is isolated: one failure
// never aborts the rest. The returned tallies are recorded durably; a
// cancelled context stops issuing new sends and the partial tally is still
// recorded as a valid result.
func (s *NotificationService) Dispatch(ctx context.Context, title, message string, audience domain.Audience) (domain.NotificationResult, error) {
	if title == "" && message == "" {
		return domain.NotificationResult{}, &domain.ValidationError{Reason: "notification must have a title or a message"}
	}
	if !domain.ValidAudience(audience) {
		return domain.NotificationResult{}, &domain.ValidationError{Reason: "unknown audience"}
	}

	if !s.gateway.Available() {
		s.logger.Warn("push gateway unavailable, dispatch skipped",
			zap.String("audience", string(audience)))
		return domain.NotificationResult{Skipped: true}, nil
	}

	// Snapshot: tokens registered after this read are not part of this
	// dispatch.
	tokens, err := s.devices.ListTokens(ctx, audience)
	if err != nil {
		return domain.NotificationResult{}, &domain.PersistenceError{Op: "list tokens", Err: err}
	}

	id, err := s.notifs.CreateNotification(ctx, title, message)
	if err != nil {
		return domain.NotificationResult{}, &domain.PersistenceError{Op: "create notification", Err: err}
	}
	// From here on only the captured id is used; no row handle survives
	// the transaction boundaries below.

	var sent, failed atomic.Int32
	var mu sync.Mutex
	var recipients []domain.NotificationRecipient
	var invalid []domain.DeviceToken

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sendLimit)

	for _, t := range tokens {
		if gctx.Err() != nil {
			// Caller timed out or cancelled: stop issuing sends. The
			// tallies so far still get recorded below.
			break
		}
		t := t
		g.Go(func() error {
			msg := port.PushMessage{
				Title: title,
				Body:  message,
				Data: map[string]string{
					"notification_id": strconv.FormatInt(id, 10),
					"device_id":       t.DeviceID,
				},
			}
			if err := s.gateway.Send(gctx, t.Token, msg); err != nil {
				failed.Add(1)
				s.logger.Warn("push delivery failed",
					zap.Int64("notification_id", id),
					zap.Int64("token_id", t.ID),
					zap.Error(err))
				if errors.Is(err, port.ErrTokenInvalid) {
					mu.Lock()
					invalid = append(invalid, t)
					mu.Unlock()
				}
				return nil
			}
			sent.Add(1)
			mu.Lock()
			recipients = append(recipients, domain.NotificationRecipient{
				NotificationID: id,
				DeviceID:       t.DeviceID,
				TokenID:        t.ID,
			})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	result := domain.NotificationResult{
		ID:          id,
		SentCount:   int(sent.Load()),
		FailedCount: int(failed.Load()),
	}

	// Record the outcome even when the caller's context has expired; the
	// sends already happened and must not be lost or repeated.
	recordCtx := context.WithoutCancel(ctx)
	if err := s.notifs.FinalizeDispatch(recordCtx, id, result.SentCount, result.FailedCount, recipients); err != nil {
		return result, &domain.PersistenceError{Op: "record dispatch outcome", Err: err}
	}

	s.pruneInvalid(recordCtx, invalid)

	s.logger.Info("notification dispatched",
		zap.Int64("notification_id", id),
		zap.String("audience", string(audience)),
		zap.Int("sent", result.SentCount),
		zap.Int("failed", result.FailedCount))

	return result, nil
}

// RecordOutcome re-persists the tallies for a dispatch whose recording step
// failed. It touches only the record identified by result.ID and never
// re-sends anything.
func (s *NotificationService) RecordOutcome(ctx context.Context, result domain.NotificationResult) error {
	if err := s.notifs.FinalizeDispatch(ctx, result.ID, result.SentCount, result.FailedCount, nil); err != nil {
		return &domain.PersistenceError{Op: "record dispatch outcome", Err: err}
	}
	return nil
}

func (s *NotificationService) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := s.notifs.GetNotification(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load notification", Err: err}
	}
	return n, nil
}

// TrackClick marks the recipient row for (notification, device) as clicked.
// Returns false when there is nothing to mark.
func (s *NotificationService) TrackClick(ctx context.Context, notificationID int64, deviceID string) (bool, error) {
	ok, err := s.notifs.MarkClicked(ctx, notificationID, deviceID)
	if err != nil {
		return false, &domain.PersistenceError{Op: "track click", Err: err}
	}
	return ok, nil
}

// pruneInvalid removes tokens the gateway reported as permanently invalid.
// Removal is best-effort: a failure is logged, never surfaced.
func (s *NotificationService) pruneInvalid(ctx context.Context, tokens []domain.DeviceToken) {
	for _, t := range tokens {
		if err := s.devices.RemoveToken(ctx, t.ID); err != nil {
			s.logger.Warn("failed to remove invalid token",
				zap.Int64("token_id", t.ID),
				zap.Error(err))
			continue
		}
		s.logger.Info("removed permanently invalid token", zap.Int64("token_id", t.ID))
	}
}
