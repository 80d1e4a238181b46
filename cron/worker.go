// File: trustpay/cron/worker.go
package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"trustpay/config"
	"trustpay/services/notification"
)

// InitSMSWorker runs the background delivery worker for queued verification
// codes. Delivery itself goes through the given sender.
func InitSMSWorker(sender notification.Notifier) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TypeSMSSend, handleSMSTask(sender))

	go func() {
		log.Println("[SMSWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[SMSWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[SMSWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleSMSTask(sender notification.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p notification.SMSPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[SMSWorker] invalid payload: %v", err)
			return err
		}
		if err := sender.SendCode(ctx, p.PhoneNumber, p.Code); err != nil {
			log.Printf("[SMSWorker] failed to deliver code to %s: %v", p.PhoneNumber, err)
			return err
		}
		return nil
	}
}
