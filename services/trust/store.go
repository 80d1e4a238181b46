// File: trustpay/services/trust/store.go
package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"trustpay/database"
	"trustpay/models"
	"trustpay/services/identity"
)

const (
	// DevicesKey holds the JSON-encoded, insertion-ordered device list.
	DevicesKey = "trusted_devices"
	// RegisteredKey is the sentinel marking this instance as registered.
	RegisteredKey = "current_device_registered"
)

// Store is the sole owner and writer of the trusted-device collection.
type Store struct {
	kv       database.KVStore
	identity *identity.Service

	mu sync.Mutex

	obsMu     sync.Mutex
	observers []chan ChangeEvent
}

func NewStore(kv database.KVStore, ident *identity.Service) *Store {
	return &Store{kv: kv, identity: ident}
}

// Register creates or overwrites the record for deviceID as the running
// instance's trusted device. A non-empty phone number must carry at least
// ten digits.
func (s *Store) Register(ctx context.Context, deviceID, name, phoneNumber string) (*models.DeviceRecord, error) {
	if phoneNumber != "" {
		if err := ValidatePhoneNumber(phoneNumber); err != nil {
			return nil, err
		}
	}

	platform, displayName := identity.CurrentPlatformInfo()
	if name == "" {
		name = platform.Title() + " Device"
	}

	record := models.DeviceRecord{
		DeviceID:        deviceID,
		Platform:        platform,
		DisplayName:     displayName,
		FriendlyName:    name,
		IsCurrentDevice: true,
		LastVerifiedAt:  time.Now(),
		PhoneNumber:     phoneNumber,
		BiometricType:   models.BiometricNone,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range devices {
		// Only one record may be the current device.
		devices[i].IsCurrentDevice = false
		if devices[i].DeviceID == deviceID {
			// Keep an existing enrollment across re-registration.
			record.BiometricType = devices[i].BiometricType
			record.BiometricTemplate = devices[i].BiometricTemplate
			devices[i] = record
			replaced = true
		}
	}
	if !replaced {
		devices = append(devices, record)
	}

	if err := s.save(ctx, devices); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, RegisteredKey, "true"); err != nil {
		return nil, fmt.Errorf("failed to mark device registered: %w", err)
	}

	s.notify(ChangeEvent{Op: OpRegister, DeviceID: deviceID})
	return &record, nil
}

// Link inserts a record produced by the linking protocol. The linked device
// is never the current one.
func (s *Store) Link(ctx context.Context, record models.DeviceRecord) (*models.DeviceRecord, error) {
	record.IsCurrentDevice = false
	record.LastVerifiedAt = time.Now()
	if record.BiometricType == "" {
		record.BiometricType = models.BiometricNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range devices {
		if devices[i].DeviceID == record.DeviceID {
			record.IsCurrentDevice = devices[i].IsCurrentDevice
			devices[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		devices = append(devices, record)
	}

	if err := s.save(ctx, devices); err != nil {
		return nil, err
	}

	s.notify(ChangeEvent{Op: OpLink, DeviceID: record.DeviceID})
	return &record, nil
}

// Partial carries the fields Upsert may merge into an existing record.
type Partial struct {
	FriendlyName      *string
	PhoneNumber       *string
	BiometricType     *models.BiometricType
	BiometricTemplate *string
}

// Upsert merges partial fields into the record for deviceID, creating it if
// absent, and always refreshes lastVerifiedAt.
func (s *Store) Upsert(ctx context.Context, deviceID string, partial Partial) (*models.DeviceRecord, error) {
	if partial.PhoneNumber != nil && *partial.PhoneNumber != "" {
		if err := ValidatePhoneNumber(*partial.PhoneNumber); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		devices = append(devices, models.DeviceRecord{
			DeviceID:      deviceID,
			Platform:      models.PlatformOther,
			BiometricType: models.BiometricNone,
		})
		idx = len(devices) - 1
	}

	record := &devices[idx]
	if partial.FriendlyName != nil {
		record.FriendlyName = *partial.FriendlyName
	}
	if partial.PhoneNumber != nil {
		record.PhoneNumber = *partial.PhoneNumber
	}
	if partial.BiometricType != nil {
		record.BiometricType = *partial.BiometricType
	}
	if partial.BiometricTemplate != nil {
		record.BiometricTemplate = *partial.BiometricTemplate
	}
	record.LastVerifiedAt = time.Now()

	if err := s.save(ctx, devices); err != nil {
		return nil, err
	}

	updated := *record
	s.notify(ChangeEvent{Op: OpUpsert, DeviceID: deviceID})
	return &updated, nil
}

// Get returns the record for deviceID, or nil when absent.
func (s *Store) Get(ctx context.Context, deviceID string) (*models.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			record := devices[i]
			return &record, nil
		}
	}
	return nil, nil
}

// CurrentDevice returns the record for the running instance, or nil.
func (s *Store) CurrentDevice(ctx context.Context) (*models.DeviceRecord, error) {
	deviceID, err := s.identity.EnsureDeviceID(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, deviceID)
}

// List returns all records in insertion order.
func (s *Store) List(ctx context.Context) ([]models.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Remove deletes the record for deviceID. Removing the running instance's id
// also clears the registered sentinel. Returns false for an absent id.
func (s *Store) Remove(ctx context.Context, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	idx := -1
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	devices = append(devices[:idx], devices[idx+1:]...)
	if err := s.save(ctx, devices); err != nil {
		return false, err
	}

	currentID, err := s.identity.EnsureDeviceID(ctx)
	if err != nil {
		return false, err
	}
	if deviceID == currentID {
		if err := s.kv.Delete(ctx, RegisteredKey); err != nil {
			return false, fmt.Errorf("failed to clear registered flag: %w", err)
		}
	}

	s.notify(ChangeEvent{Op: OpRemove, DeviceID: deviceID})
	return true, nil
}

// IsCurrentDeviceTrusted reports whether the registered sentinel is set AND
// the running instance's record still exists. A store/flag mismatch after
// external tampering reads as untrusted.
func (s *Store) IsCurrentDeviceTrusted(ctx context.Context) (bool, error) {
	flag, ok, err := s.kv.Get(ctx, RegisteredKey)
	if err != nil {
		return false, fmt.Errorf("failed to read registered flag: %w", err)
	}
	if !ok || flag != "true" {
		return false, nil
	}

	record, err := s.CurrentDevice(ctx)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

func (s *Store) load(ctx context.Context) ([]models.DeviceRecord, error) {
	raw, ok, err := s.kv.Get(ctx, DevicesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted devices: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var devices []models.DeviceRecord
	if err := json.Unmarshal([]byte(raw), &devices); err != nil {
		return nil, fmt.Errorf("failed to decode trusted devices: %w", err)
	}
	return devices, nil
}

func (s *Store) save(ctx context.Context, devices []models.DeviceRecord) error {
	data, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("failed to encode trusted devices: %w", err)
	}
	if err := s.kv.Set(ctx, DevicesKey, string(data)); err != nil {
		return fmt.Errorf("failed to save trusted devices: %w", err)
	}
	return nil
}
