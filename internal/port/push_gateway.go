package port

import (
	"context"
	"errors"
)

// ErrTokenInvalid marks a token the gateway rejected as permanently
// unusable. The dispatcher counts the send as failed and prunes the token.
var ErrTokenInvalid = errors.New("push token permanently invalid")

type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushGateway is the external delivery service. Available reflects whether
// the gateway was configured at startup; when it reports false, dispatches
// short-circuit instead of failing the surrounding flow.
type PushGateway interface {
	Available() bool
	Send(ctx context.Context, token string, msg PushMessage) error
}
