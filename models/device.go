// File: trustpay/models/device.go
package models

import "time"

// Platform identifies the operating environment a device runs on.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
	PlatformOther   Platform = "other"
)

// Title returns a display-friendly form of the platform name.
func (p Platform) Title() string {
	switch p {
	case PlatformAndroid:
		return "Android"
	case PlatformIOS:
		return "iOS"
	case PlatformWeb:
		return "Web"
	default:
		return "Other"
	}
}

// BiometricType is the kind of biometric a device has enrolled.
type BiometricType string

const (
	BiometricNone        BiometricType = "none"
	BiometricFace        BiometricType = "face"
	BiometricFingerprint BiometricType = "fingerprint"
)

// DeviceRecord is a single entry in the trust store.
// At most one record exists per DeviceID, and at most one record in a store
// instance carries IsCurrentDevice=true.
type DeviceRecord struct {
	DeviceID          string        `json:"deviceId"`
	Platform          Platform      `json:"platform"`
	DisplayName       string        `json:"displayName"`
	FriendlyName      string        `json:"friendlyName"`
	IsCurrentDevice   bool          `json:"isCurrentDevice"`
	LastVerifiedAt    time.Time     `json:"lastVerifiedAt"`
	PhoneNumber       string        `json:"phoneNumber,omitempty"`
	BiometricType     BiometricType `json:"biometricType"`
	BiometricTemplate string        `json:"biometricTemplate,omitempty"`
}
