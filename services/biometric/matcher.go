// File: trustpay/services/biometric/matcher.go
package biometric

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Matcher is the pluggable biometric capability. The core never inspects
// samples; it passes opaque blobs through this interface.
type Matcher interface {
	// Enroll registers a captured sample and returns an opaque template reference.
	Enroll(ctx context.Context, sample []byte) (string, error)
	// Verify compares a fresh sample against an enrolled template.
	Verify(ctx context.Context, sample []byte, templateRef string) (bool, error)
}

// AcceptAllMatcher approves every non-empty sample. Demo and test use only;
// production wires a real matching engine behind the Matcher interface.
type AcceptAllMatcher struct{}

func (AcceptAllMatcher) Enroll(_ context.Context, sample []byte) (string, error) {
	if len(sample) == 0 {
		return "", errors.New("empty biometric sample")
	}
	return uuid.New().String(), nil
}

func (AcceptAllMatcher) Verify(_ context.Context, sample []byte, templateRef string) (bool, error) {
	if templateRef == "" {
		return false, errors.New("no enrolled template")
	}
	return len(sample) > 0, nil
}
