// File: trustpay/services/linking/linking.go
package linking

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustpay/database"
	"trustpay/models"
	"trustpay/services/identity"
	"trustpay/services/trust"
	"trustpay/utils"
)

// PayloadTTL is how long an issued link payload stays redeemable.
const PayloadTTL = 5 * time.Minute

const consumedKeyPrefix = "link_consumed:"

var (
	// ErrExpiredLink is returned when a payload is redeemed at or past its expiry.
	ErrExpiredLink = errors.New("link payload has expired")
	// ErrMalformedPayload is returned when the transport string does not
	// decode to a well-formed link payload.
	ErrMalformedPayload = errors.New("malformed link payload")
	// ErrLinkAlreadyUsed is returned when a payload's session token has
	// already been consumed.
	ErrLinkAlreadyUsed = errors.New("link payload already redeemed")
)

// Service issues and redeems device-linking payloads.
type Service struct {
	kv       database.KVStore
	identity *identity.Service
	trust    *trust.Store

	// Serializes redemptions so the same payload cannot be consumed twice
	// by racing callers.
	mu sync.Mutex
}

func NewService(kv database.KVStore, ident *identity.Service, store *trust.Store) *Service {
	return &Service{kv: kv, identity: ident, trust: store}
}

// Issue builds a link payload for the current device with a fresh single-use
// session token, valid for five minutes. It does not touch the trust store.
func (s *Service) Issue(ctx context.Context) (string, error) {
	deviceID, err := s.identity.EnsureDeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve device identity: %w", err)
	}
	platform, displayName := identity.CurrentPlatformInfo()

	payload := models.LinkPayload{
		DeviceInfo: models.LinkDeviceInfo{
			DeviceID:   deviceID,
			Platform:   platform,
			DeviceName: displayName,
			Timestamp:  time.Now(),
		},
		SessionToken: uuid.New().String(),
		ExpiresAt:    time.Now().Add(PayloadTTL),
	}
	return EncodePayload(payload)
}

// Redeem consumes a link payload and adds the vouched-for device to the
// trust store. Each session token is honored at most once.
func (s *Service) Redeem(ctx context.Context, encoded string) (*models.DeviceRecord, error) {
	payload, err := DecodePayload(encoded)
	if err != nil {
		return nil, err
	}
	if !time.Now().Before(payload.ExpiresAt) {
		return nil, ErrExpiredLink
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	consumedKey := consumedKeyPrefix + payload.SessionToken
	if _, used, err := s.kv.Get(ctx, consumedKey); err != nil {
		return nil, fmt.Errorf("failed to check session token: %w", err)
	} else if used {
		return nil, ErrLinkAlreadyUsed
	}
	// The marker only needs to outlive the payload itself.
	ttl := time.Until(payload.ExpiresAt)
	if err := s.kv.SetTTL(ctx, consumedKey, "1", ttl); err != nil {
		return nil, fmt.Errorf("failed to consume session token: %w", err)
	}

	record := models.DeviceRecord{
		DeviceID:     payload.DeviceInfo.DeviceID,
		Platform:     payload.DeviceInfo.Platform,
		DisplayName:  payload.DeviceInfo.DeviceName,
		FriendlyName: payload.DeviceInfo.Platform.Title() + " Device",
	}
	linked, err := s.trust.Link(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to link device: %w", err)
	}

	utils.GetLogger().Info("Linked new device",
		zap.String("deviceId", linked.DeviceID),
		zap.String("platform", string(linked.Platform)))
	return linked, nil
}

// EncodePayload serializes a payload to its base64 transport form.
func EncodePayload(payload models.LinkPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode link payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayload parses the base64 transport form back into a payload.
func DecodePayload(encoded string) (*models.LinkPayload, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	var payload models.LinkPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrMalformedPayload
	}
	if payload.DeviceInfo.DeviceID == "" || payload.SessionToken == "" || payload.ExpiresAt.IsZero() {
		return nil, ErrMalformedPayload
	}
	return &payload, nil
}
