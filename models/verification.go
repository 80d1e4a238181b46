// File: trustpay/models/verification.go
package models

// RiskLevel grades how risky an evaluated transaction is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is the action the caller should take next.
type Recommendation string

const (
	RecommendAllow             Recommendation = "allow"
	RecommendBlock             Recommendation = "block"
	RecommendVerifyByPhone     Recommendation = "verify_by_phone"
	RecommendVerifyByBiometric Recommendation = "verify_by_biometric"
)

// VerificationResult is the outcome of a risk evaluation.
// Verified reports that device trust is established, independent of any
// pending step-up. At most one of the two Requires flags is ever true.
type VerificationResult struct {
	Verified                      bool           `json:"verified"`
	RiskLevel                     RiskLevel      `json:"riskLevel"`
	Reason                        string         `json:"reason"`
	Recommendation                Recommendation `json:"recommendation"`
	RequiresCallVerification      bool           `json:"requiresCallVerification"`
	RequiresBiometricVerification bool           `json:"requiresBiometricVerification"`
}
