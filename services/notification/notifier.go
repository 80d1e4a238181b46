// File: trustpay/services/notification/notifier.go
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"trustpay/utils"
)

// TypeSMSSend is the asynq task type for out-of-band code delivery.
const TypeSMSSend = "sms:send"

// Notifier delivers a verification code out of band. Delivery failures are
// the delivery channel's concern; the core only hands the code over.
type Notifier interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}

// SMSPayload is the task body for sms:send.
type SMSPayload struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

// LogNotifier logs the outgoing message instead of calling a real SMS
// gateway. Swap in a provider integration here.
type LogNotifier struct{}

func (LogNotifier) SendCode(_ context.Context, phoneNumber, code string) error {
	utils.GetLogger().Sugar().Infof(
		"Calling %s with verification code %s. It expires in 5 minutes.", phoneNumber, code)
	return nil
}

// AsynqNotifier hands delivery to the background SMS worker queue.
type AsynqNotifier struct {
	Client *asynq.Client
}

func NewAsynqNotifier(client *asynq.Client) *AsynqNotifier {
	return &AsynqNotifier{Client: client}
}

func (n *AsynqNotifier) SendCode(ctx context.Context, phoneNumber, code string) error {
	payload, err := json.Marshal(SMSPayload{PhoneNumber: phoneNumber, Code: code})
	if err != nil {
		return fmt.Errorf("failed to encode sms payload: %w", err)
	}
	task := asynq.NewTask(TypeSMSSend, payload)
	info, err := n.Client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue sms task: %w", err)
	}
	utils.GetLogger().Debug("Enqueued sms task",
		zap.String("taskId", info.ID), zap.String("queue", info.Queue))
	return nil
}
