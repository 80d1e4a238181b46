// File: trustpay/services/verification/code.go
package verification

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"trustpay/database"
	"trustpay/services/notification"
	"trustpay/utils"
)

// CodeKey is the KV key holding the sole outstanding verification code.
const CodeKey = "verification_code"

// CodeTTL bounds how long an issued code stays checkable.
const CodeTTL = 5 * time.Minute

type storedCode struct {
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service owns the single outstanding phone verification code. Issuing a new
// code invalidates any prior unconsumed one.
type Service struct {
	kv       database.KVStore
	notifier notification.Notifier
	mu       sync.Mutex
}

func NewService(kv database.KVStore, notifier notification.Notifier) *Service {
	return &Service{kv: kv, notifier: notifier}
}

// Issue generates a uniformly random 6-digit code, stores its hash as the
// sole outstanding code and hands it to the notifier for out-of-band
// delivery when a phone number is known. The plain code is returned to the
// caller for the delivery channel.
func (s *Service) Issue(ctx context.Context, phoneNumber string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	// Codes are stored hashed, never in the clear.
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash verification code: %w", err)
	}
	stored := storedCode{CodeHash: string(hash), ExpiresAt: time.Now().Add(CodeTTL)}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode verification code: %w", err)
	}

	s.mu.Lock()
	err = s.kv.SetTTL(ctx, CodeKey, string(data), CodeTTL)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	if s.notifier != nil && phoneNumber != "" {
		if err := s.notifier.SendCode(ctx, phoneNumber, code); err != nil {
			utils.GetLogger().Error("Failed to dispatch verification code", zap.Error(err))
			return "", fmt.Errorf("failed to send verification code: %w", err)
		}
	}
	return code, nil
}

// Check compares candidate against the outstanding code. The outstanding
// code is invalidated regardless of the outcome: one attempt per issued
// code. With no outstanding code, Check reports false.
func (s *Service) Check(ctx context.Context, candidate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, CodeKey)
	if err != nil {
		return false, fmt.Errorf("failed to read verification code: %w", err)
	}
	if !ok {
		return false, nil
	}

	// Burn the code before looking at the answer.
	if err := s.kv.Delete(ctx, CodeKey); err != nil {
		return false, fmt.Errorf("failed to invalidate verification code: %w", err)
	}

	var stored storedCode
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return false, fmt.Errorf("failed to decode verification code: %w", err)
	}
	if !time.Now().Before(stored.ExpiresAt) {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(candidate)) == nil, nil
}

// generateCode draws a uniform 6-digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
