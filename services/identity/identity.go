// File: trustpay/services/identity/identity.go
package identity

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"

	"trustpay/database"
	"trustpay/models"
)

// DeviceIDKey is the KV key under which the stable device identifier lives.
const DeviceIDKey = "trusted_device_id"

// Service derives and persists the identity of the locally-running instance.
type Service struct {
	Store database.KVStore
}

func NewService(store database.KVStore) *Service {
	return &Service{Store: store}
}

// EnsureDeviceID returns the persisted identifier for this installation,
// generating and persisting a new random identifier on first call.
func (s *Service) EnsureDeviceID(ctx context.Context) (string, error) {
	if id, ok, err := s.Store.Get(ctx, DeviceIDKey); err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	} else if ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	if err := s.Store.Set(ctx, DeviceIDKey, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

// CurrentPlatformInfo classifies the running environment. Pure; no side effects.
func CurrentPlatformInfo() (models.Platform, string) {
	var platform models.Platform
	switch runtime.GOOS {
	case "android":
		platform = models.PlatformAndroid
	case "ios":
		platform = models.PlatformIOS
	case "js":
		platform = models.PlatformWeb
	default:
		platform = models.PlatformOther
	}

	displayName := "Unknown Device"
	if host, err := os.Hostname(); err == nil && host != "" {
		displayName = host
	}
	return platform, displayName
}
