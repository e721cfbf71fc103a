package livekit

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// CapabilityToken is a minted participant token and the grants it carries. Not persisted.
type CapabilityToken struct {
	Token        string    `json:"token"`
	Subject      string    `json:"identity"`
	SessionName  string    `json:"session_name"`
	CanPublish   bool      `json:"can_publish"`
	CanSubscribe bool      `json:"can_subscribe"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Signer holds the project API key and secret. It mints participant tokens and backs the
// egress client and webhook verification.
type Signer struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// NewSigner creates a token signer. Both key and secret are required.
func NewSigner(apiKey, apiSecret string) (*Signer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("livekit: api key and secret required")
	}
	return &Signer{apiKey: apiKey, apiSecret: apiSecret, now: time.Now}, nil
}

// APIKey returns the key the tokens are issued under.
func (s *Signer) APIKey() string { return s.apiKey }

// KeyProvider returns a provider resolving this project's key to its secret.
func (s *Signer) KeyProvider() auth.KeyProvider {
	return auth.NewSimpleKeyProvider(s.apiKey, s.apiSecret)
}

// ParticipantToken mints a room-join token. Subscribing is always allowed; publishing
// follows canPublish.
func (s *Signer) ParticipantToken(identity, name, room string, canPublish bool, ttl time.Duration) (*CapabilityToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("livekit: ttl must be positive")
	}
	canSubscribe, canPublishData := true, true
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           room,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}
	token, err := auth.NewAccessToken(s.apiKey, s.apiSecret).
		AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(ttl).
		ToJWT()
	if err != nil {
		return nil, fmt.Errorf("livekit: sign token: %w", err)
	}
	return &CapabilityToken{
		Token:        token,
		Subject:      identity,
		SessionName:  room,
		CanPublish:   canPublish,
		CanSubscribe: canSubscribe,
		ExpiresAt:    s.now().Add(ttl),
	}, nil
}
