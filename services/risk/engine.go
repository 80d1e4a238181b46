// File: trustpay/services/risk/engine.go
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"trustpay/models"
	"trustpay/services/biometric"
	"trustpay/services/trust"
	"trustpay/services/verification"
	"trustpay/utils"
)

// State tracks an in-flight transaction through its step-up sequence.
type State string

const (
	StateSubmitted         State = "submitted"
	StateBiometricRequired State = "biometric_required"
	StateCallRequired      State = "call_required"
	StateDecided           State = "decided"
)

// Outcome is the terminal decision for a transaction.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeBlocked  Outcome = "blocked"
)

// ErrNoPendingEvaluation is returned when a step-up result arrives for a
// transaction that was never evaluated.
var ErrNoPendingEvaluation = errors.New("no pending evaluation for transaction")

type session struct {
	state                State
	outcome              Outcome
	biometricPassed      bool
	callPassed           bool
	lastBiometricFailure string
}

// Engine composes trust-store state, biometric status and transaction
// attributes into verification decisions, and drives step-up flows.
type Engine struct {
	trust     *trust.Store
	codes     *verification.Service
	matcher   biometric.Matcher
	threshold float64

	mu       sync.Mutex
	sessions map[string]*session
}

func NewEngine(store *trust.Store, codes *verification.Service, matcher biometric.Matcher, highValueThreshold float64) *Engine {
	return &Engine{
		trust:     store,
		codes:     codes,
		matcher:   matcher,
		threshold: highValueThreshold,
		sessions:  make(map[string]*session),
	}
}

// Evaluate runs the decision algorithm for a transaction. Callers resubmit
// after completing a requested step-up until no step-up flag remains set.
func (e *Engine) Evaluate(ctx context.Context, tx models.Transaction) (*models.VerificationResult, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[tx.ID]
	if !ok {
		sess = &session{state: StateSubmitted}
		e.sessions[tx.ID] = sess
	}

	trusted, err := e.trust.IsCurrentDeviceTrusted(ctx)
	if err != nil {
		// Fail closed: unresolved trust state is never approved.
		utils.GetLogger().Error("Failed to resolve device trust", zap.Error(err))
		sess.state = StateDecided
		sess.outcome = OutcomeBlocked
		return &models.VerificationResult{
			Verified:       false,
			RiskLevel:      models.RiskHigh,
			Reason:         "Unable to resolve device trust",
			Recommendation: models.RecommendBlock,
		}, nil
	}
	if !trusted {
		sess.state = StateDecided
		sess.outcome = OutcomeBlocked
		return &models.VerificationResult{
			Verified:       false,
			RiskLevel:      models.RiskHigh,
			Reason:         "Untrusted device",
			Recommendation: models.RecommendBlock,
		}, nil
	}

	device, err := e.trust.CurrentDevice(ctx)
	if err != nil || device == nil {
		utils.GetLogger().Error("Failed to load current device record", zap.Error(err))
		sess.state = StateDecided
		sess.outcome = OutcomeBlocked
		return &models.VerificationResult{
			Verified:       false,
			RiskLevel:      models.RiskHigh,
			Reason:         "Unable to resolve device trust",
			Recommendation: models.RecommendBlock,
		}, nil
	}

	if device.BiometricType != models.BiometricNone && !sess.biometricPassed {
		sess.state = StateBiometricRequired
		reason := "Complete biometric verification"
		if sess.lastBiometricFailure != "" {
			reason = "Biometric verification failed: " + sess.lastBiometricFailure
		}
		return &models.VerificationResult{
			Verified:                      true,
			RiskLevel:                     models.RiskMedium,
			Reason:                        reason,
			Recommendation:                models.RecommendVerifyByBiometric,
			RequiresBiometricVerification: true,
		}, nil
	}

	if tx.Amount >= e.threshold && !sess.callPassed {
		sess.state = StateCallRequired
		reason := "Verify via phone call"
		if device.PhoneNumber == "" {
			// Unactionable until a phone number is registered; not auto-blocked.
			reason = "Register a phone number to verify via phone call"
		}
		return &models.VerificationResult{
			Verified:                 true,
			RiskLevel:                models.RiskMedium,
			Reason:                   reason,
			Recommendation:           models.RecommendVerifyByPhone,
			RequiresCallVerification: true,
		}, nil
	}

	sess.state = StateDecided
	sess.outcome = OutcomeApproved
	return &models.VerificationResult{
		Verified:       true,
		RiskLevel:      models.RiskLow,
		Reason:         "Transaction approved",
		Recommendation: models.RecommendAllow,
	}, nil
}

// SubmitBiometric feeds a captured sample back into a pending evaluation.
// On success the trust store refreshes the device's verification timestamp;
// on failure the next Evaluate surfaces the reason and re-prompts.
func (e *Engine) SubmitBiometric(ctx context.Context, txID string, sample []byte) (bool, error) {
	e.mu.Lock()
	sess, ok := e.sessions[txID]
	e.mu.Unlock()
	if !ok {
		return false, ErrNoPendingEvaluation
	}

	device, err := e.trust.CurrentDevice(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load current device: %w", err)
	}
	if device == nil || device.BiometricTemplate == "" {
		return false, errors.New("no biometric enrolled for current device")
	}

	match, err := e.matcher.Verify(ctx, sample, device.BiometricTemplate)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		sess.lastBiometricFailure = err.Error()
		return false, fmt.Errorf("biometric verification failed: %w", err)
	}
	if !match {
		sess.lastBiometricFailure = "sample did not match enrolled template"
		return false, nil
	}

	sess.biometricPassed = true
	sess.lastBiometricFailure = ""
	if _, err := e.trust.Upsert(ctx, device.DeviceID, trust.Partial{}); err != nil {
		utils.GetLogger().Warn("Failed to refresh device verification timestamp", zap.Error(err))
	}
	return true, nil
}

// SubmitCallCode feeds a phone verification code back into a pending
// evaluation. The outstanding code is consumed either way.
func (e *Engine) SubmitCallCode(ctx context.Context, txID, code string) (bool, error) {
	e.mu.Lock()
	sess, ok := e.sessions[txID]
	e.mu.Unlock()
	if !ok {
		return false, ErrNoPendingEvaluation
	}

	match, err := e.codes.Check(ctx, code)
	if err != nil {
		return false, err
	}
	if !match {
		return false, nil
	}

	e.mu.Lock()
	sess.callPassed = true
	e.mu.Unlock()

	if device, err := e.trust.CurrentDevice(ctx); err == nil && device != nil {
		if _, err := e.trust.Upsert(ctx, device.DeviceID, trust.Partial{}); err != nil {
			utils.GetLogger().Warn("Failed to refresh device verification timestamp", zap.Error(err))
		}
	}
	return true, nil
}

// SessionState reports the step-up state for a transaction, if one exists.
func (e *Engine) SessionState(txID string) (State, Outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[txID]
	if !ok {
		return "", "", false
	}
	return sess.state, sess.outcome, true
}

func validateTransaction(tx models.Transaction) error {
	if tx.ID == "" {
		return &models.ValidationError{Field: "id", Message: "must not be empty"}
	}
	if tx.Amount < 0 || math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return &models.ValidationError{Field: "amount", Message: "must be a non-negative number"}
	}
	if tx.Currency == "" {
		return &models.ValidationError{Field: "currency", Message: "must not be empty"}
	}
	return nil
}
