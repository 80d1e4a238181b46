// File: trustpay/services/risk/engine_test.go
package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"trustpay/database"
	"trustpay/models"
	"trustpay/services/biometric"
	"trustpay/services/identity"
	"trustpay/services/trust"
	"trustpay/services/verification"
)

const testThreshold = 10000

// stubMatcher returns a fixed verdict for every sample.
type stubMatcher struct {
	verdict bool
	err     error
}

func (m stubMatcher) Enroll(_ context.Context, _ []byte) (string, error) {
	return "stub-template", nil
}

func (m stubMatcher) Verify(_ context.Context, _ []byte, _ string) (bool, error) {
	return m.verdict, m.err
}

type fixture struct {
	engine *Engine
	store  *trust.Store
	codes  *verification.Service
	id     string
	ctx    context.Context
}

func newFixture(t *testing.T, matcher biometric.Matcher) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := database.NewMemoryStore()
	ident := identity.NewService(kv)
	id, err := ident.EnsureDeviceID(ctx)
	if err != nil {
		t.Fatalf("EnsureDeviceID failed: %v", err)
	}
	store := trust.NewStore(kv, ident)
	codes := verification.NewService(kv, nil)
	return &fixture{
		engine: NewEngine(store, codes, matcher, testThreshold),
		store:  store,
		codes:  codes,
		id:     id,
		ctx:    ctx,
	}
}

func (f *fixture) register(t *testing.T, phone string) {
	t.Helper()
	if _, err := f.store.Register(f.ctx, f.id, "Test Device", phone); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func (f *fixture) enroll(t *testing.T) {
	t.Helper()
	bioType := models.BiometricFace
	template := "stub-template"
	if _, err := f.store.Upsert(f.ctx, f.id, trust.Partial{
		BiometricType:     &bioType,
		BiometricTemplate: &template,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func tx(id string, amount float64) models.Transaction {
	return models.Transaction{
		ID:        id,
		Amount:    amount,
		Currency:  "USD",
		Recipient: "acme",
		Timestamp: time.Now(),
	}
}

func TestEvaluate_UntrustedDeviceBlocked(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})

	for _, amount := range []float64{1, 9999.99, 50000} {
		result, err := f.engine.Evaluate(f.ctx, tx("tx-untrusted", amount))
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.Verified {
			t.Error("untrusted device reported verified")
		}
		if result.RiskLevel != models.RiskHigh {
			t.Errorf("riskLevel = %s, want high", result.RiskLevel)
		}
		if result.Recommendation != models.RecommendBlock {
			t.Errorf("recommendation = %s, want block", result.Recommendation)
		}
		if result.RequiresCallVerification || result.RequiresBiometricVerification {
			t.Error("blocked result must not offer step-up")
		}
	}
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name         string
		amount       float64
		wantApproved bool
	}{
		{name: "below threshold", amount: 9999.99, wantApproved: true},
		{name: "at threshold", amount: 10000.00, wantApproved: false},
		{name: "above threshold", amount: 10000.01, wantApproved: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubMatcher{verdict: true})
			f.register(t, "0712345678")

			result, err := f.engine.Evaluate(f.ctx, tx("tx-threshold", tt.amount))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if !result.Verified {
				t.Error("trusted device reported unverified")
			}
			if tt.wantApproved {
				if result.Recommendation != models.RecommendAllow || result.RiskLevel != models.RiskLow {
					t.Errorf("got %s/%s, want allow/low", result.Recommendation, result.RiskLevel)
				}
				if result.RequiresCallVerification {
					t.Error("approved result demands call verification")
				}
			} else {
				if !result.RequiresCallVerification {
					t.Error("high-value result lacks call verification flag")
				}
				if result.RequiresBiometricVerification {
					t.Error("both step-up flags set at once")
				}
				if result.RiskLevel != models.RiskMedium {
					t.Errorf("riskLevel = %s, want medium", result.RiskLevel)
				}
			}
		})
	}
}

func TestEvaluate_BiometricBeforeCall(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "0712345678")
	f.enroll(t)

	// Biometric is resolved before call verification is even considered,
	// even for a high-value transaction.
	result, err := f.engine.Evaluate(f.ctx, tx("tx-both", 20000))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.RequiresBiometricVerification {
		t.Fatal("expected biometric step-up first")
	}
	if result.RequiresCallVerification {
		t.Fatal("both step-up flags set at once")
	}

	ok, err := f.engine.SubmitBiometric(f.ctx, "tx-both", []byte("sample"))
	if err != nil || !ok {
		t.Fatalf("SubmitBiometric = %v, %v", ok, err)
	}

	// Resubmission now lands on call verification.
	result, err = f.engine.Evaluate(f.ctx, tx("tx-both", 20000))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.RequiresBiometricVerification {
		t.Error("biometric demanded again after success")
	}
	if !result.RequiresCallVerification {
		t.Error("call verification not demanded for high value")
	}
}

func TestEvaluate_BiometricFailureReprompts(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: false})
	f.register(t, "")
	f.enroll(t)

	if _, err := f.engine.Evaluate(f.ctx, tx("tx-bio", 50)); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	ok, err := f.engine.SubmitBiometric(f.ctx, "tx-bio", []byte("sample"))
	if err != nil {
		t.Fatalf("SubmitBiometric failed: %v", err)
	}
	if ok {
		t.Fatal("failing matcher reported success")
	}

	result, err := f.engine.Evaluate(f.ctx, tx("tx-bio", 50))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.RequiresBiometricVerification {
		t.Error("failed biometric should re-prompt, not proceed")
	}
	if result.Reason == "Complete biometric verification" {
		t.Error("failure reason not surfaced on re-prompt")
	}
}

func TestCallVerificationFlow(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "0712345678")

	result, err := f.engine.Evaluate(f.ctx, tx("tx-call", 15000))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.RequiresCallVerification {
		t.Fatal("expected call verification step-up")
	}

	code, err := f.codes.Issue(f.ctx, "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A wrong code keeps the transaction in the call-required state.
	ok, err := f.engine.SubmitCallCode(f.ctx, "tx-call", "000000")
	if err != nil {
		t.Fatalf("SubmitCallCode failed: %v", err)
	}
	if ok {
		t.Fatal("wrong code accepted")
	}

	// The burned code no longer verifies; issue a fresh one.
	if ok, _ := f.engine.SubmitCallCode(f.ctx, "tx-call", code); ok {
		t.Fatal("burned code accepted")
	}
	code, err = f.codes.Issue(f.ctx, "")
	if err != nil {
		t.Fatalf("re-Issue failed: %v", err)
	}
	ok, err = f.engine.SubmitCallCode(f.ctx, "tx-call", code)
	if err != nil || !ok {
		t.Fatalf("SubmitCallCode = %v, %v", ok, err)
	}

	result, err = f.engine.Evaluate(f.ctx, tx("tx-call", 15000))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Recommendation != models.RecommendAllow || result.RequiresCallVerification {
		t.Errorf("transaction not approved after call verification: %+v", result)
	}
}

func TestEvaluate_CallRequiredWithoutPhone(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "")

	result, err := f.engine.Evaluate(f.ctx, tx("tx-nophone", 15000))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.RequiresCallVerification {
		t.Fatal("expected call verification step-up")
	}
	if result.Reason == "Verify via phone call" {
		t.Error("missing phone number not signaled to caller")
	}
}

func TestSubmitWithoutEvaluate(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "")

	if _, err := f.engine.SubmitBiometric(f.ctx, "unknown-tx", []byte("x")); !errors.Is(err, ErrNoPendingEvaluation) {
		t.Fatalf("SubmitBiometric = %v, want ErrNoPendingEvaluation", err)
	}
	if _, err := f.engine.SubmitCallCode(f.ctx, "unknown-tx", "123456"); !errors.Is(err, ErrNoPendingEvaluation) {
		t.Fatalf("SubmitCallCode = %v, want ErrNoPendingEvaluation", err)
	}
}

func TestEvaluate_InvalidTransaction(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "")

	tests := []struct {
		name string
		tx   models.Transaction
	}{
		{name: "empty id", tx: models.Transaction{Amount: 10, Currency: "USD"}},
		{name: "negative amount", tx: models.Transaction{ID: "t1", Amount: -1, Currency: "USD"}},
		{name: "missing currency", tx: models.Transaction{ID: "t2", Amount: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Evaluate(f.ctx, tt.tx)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Evaluate = %v, want *models.ValidationError", err)
			}
		})
	}
}

func TestSessionState_Transitions(t *testing.T) {
	f := newFixture(t, stubMatcher{verdict: true})
	f.register(t, "0712345678")

	if _, _, ok := f.engine.SessionState("tx-state"); ok {
		t.Fatal("session exists before first Evaluate")
	}

	if _, err := f.engine.Evaluate(f.ctx, tx("tx-state", 15000)); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	state, _, ok := f.engine.SessionState("tx-state")
	if !ok || state != StateCallRequired {
		t.Fatalf("state = %s, want call_required", state)
	}

	code, _ := f.codes.Issue(f.ctx, "")
	if ok, err := f.engine.SubmitCallCode(f.ctx, "tx-state", code); err != nil || !ok {
		t.Fatalf("SubmitCallCode = %v, %v", ok, err)
	}
	if _, err := f.engine.Evaluate(f.ctx, tx("tx-state", 15000)); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	state, outcome, ok := f.engine.SessionState("tx-state")
	if !ok || state != StateDecided || outcome != OutcomeApproved {
		t.Fatalf("terminal state = %s/%s, want decided/approved", state, outcome)
	}
}
