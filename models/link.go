// File: trustpay/models/link.go
package models

import "time"

// LinkDeviceInfo describes the new device inside a link payload.
type LinkDeviceInfo struct {
	DeviceID   string    `json:"deviceId"`
	Platform   Platform  `json:"platform"`
	DeviceName string    `json:"deviceName"`
	Timestamp  time.Time `json:"timestamp"`
}

// LinkPayload is the short-lived hand-off message one trusted device presents
// to vouch for another. Serialized as base64-encoded JSON on the wire.
type LinkPayload struct {
	DeviceInfo   LinkDeviceInfo `json:"deviceInfo"`
	SessionToken string         `json:"sessionToken"`
	ExpiresAt    time.Time      `json:"expiresAt"`
}
