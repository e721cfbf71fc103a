package livekit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/livekit/protocol/auth"
	lkproto "github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/bodycam/backend/internal/apperrors"
)

// Webhook event names.
const (
	EventEgressStarted = "egress_started"
	EventEgressUpdated = "egress_updated"
	EventEgressEnded   = "egress_ended"
)

// WebhookVerifier authenticates provider callbacks. LiveKit signs them with the project
// API secret: the Authorization token carries a sha256 claim over the body.
type WebhookVerifier struct {
	provider auth.KeyProvider
}

// NewWebhookVerifier creates a verifier for callbacks signed with the signer's key pair.
func NewWebhookVerifier(signer *Signer) (*WebhookVerifier, error) {
	if signer == nil {
		return nil, fmt.Errorf("livekit: signer required")
	}
	return &WebhookVerifier{provider: signer.KeyProvider()}, nil
}

// Verify consumes the request body, checks its signature and returns the body. A
// "Bearer " prefix on the Authorization header is tolerated. Every failure wraps
// apperrors.ErrInvalidSignature.
func (v *WebhookVerifier) Verify(r *http.Request) ([]byte, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		r.Header.Set("Authorization", strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
	}
	body, err := webhook.Receive(r, v.provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSignature, err)
	}
	return body, nil
}

var eventUnmarshaler = protojson.UnmarshalOptions{DiscardUnknown: true}

// ParseEvent decodes a verified callback body. Fields added by newer servers are ignored.
func ParseEvent(body []byte) (*lkproto.WebhookEvent, error) {
	var ev lkproto.WebhookEvent
	if err := eventUnmarshaler.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", apperrors.ErrInvalidRequest, err)
	}
	return &ev, nil
}
