package domain

import "time"

type Audience string

const (
	AudienceAll    Audience = "all"
	AudienceAdmins Audience = "admins"
)

func ValidAudience(a Audience) bool {
	return a == AudienceAll || a == AudienceAdmins
}

// DeviceToken maps a push token to a device. Token values are unique across
// rows; re-registration updates the existing row.
type DeviceToken struct {
	ID        int64
	DeviceID  string
	Token     string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID          int64
	Title       string
	Message     string
	SentCount   int
	FailedCount int
	CreatedAt   time.Time
}

// NotificationRecipient records one successful delivery. TokenID is zero
// once the token has been unsubscribed or pruned.
type NotificationRecipient struct {
	ID             int64
	NotificationID int64
	DeviceID       string
	TokenID        int64
	SentAt         time.Time
	Clicked        bool
	ClickedAt      *time.Time
}

// NotificationResult is the outcome of one dispatch. ID is a plain value,
// safe to hold across transaction boundaries. Skipped is set when the push
// gateway was unavailable and nothing was attempted.
type NotificationResult struct {
	ID          int64
	SentCount   int
	FailedCount int
	Skipped     bool
}
