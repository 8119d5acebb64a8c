package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"slotwise/config"
	"slotwise/models"
	"slotwise/services/reservation"
)

const TypeBookingExpire = "booking:expire"

// ExpirePayload identifies the booking a deferred expiry task should check.
type ExpirePayload struct {
	BookingID string `json:"bookingId"`
}

// AsynqExpiryScheduler enqueues deferred expiry tasks for pending bookings.
type AsynqExpiryScheduler struct {
	Client *asynq.Client
}

// NewAsynqExpiryScheduler builds a scheduler backed by the configured Redis queue.
func NewAsynqExpiryScheduler() *AsynqExpiryScheduler {
	return &AsynqExpiryScheduler{
		Client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     config.AppConfig.RedisAddr,
			Password: config.AppConfig.RedisPassword,
			DB:       config.AppConfig.RedisQueueDB,
		}),
	}
}

// ScheduleExpiry enqueues a task that cancels the booking if it is still
// pending when the task fires.
func (s *AsynqExpiryScheduler) ScheduleExpiry(ctx context.Context, bookingID string, at time.Time) error {
	payload, err := json.Marshal(ExpirePayload{BookingID: bookingID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeBookingExpire, payload)
	_, err = s.Client.EnqueueContext(ctx, task, asynq.ProcessAt(at))
	return err
}

// InitExpiryWorker runs the async worker in background. It handles deferred
// per-booking expiry tasks and periodically sweeps stale pending records
// left behind by crashed instances that never enqueued a task.
func InitExpiryWorker(bookings reservation.BookingRepository, pendingTTL time.Duration) {
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
	mux.HandleFunc(TypeBookingExpire, handleExpireTask(bookings))

	go sweepStalePending(bookings, pendingTTL)

	// Start async worker with retry logic
	go func() {
		log.Println("[ExpiryWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ExpiryWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ExpiryWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleExpireTask(bookings reservation.BookingRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ExpirePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ExpiryHandler] Invalid payload: %v", err)
			return err
		}

		b, err := bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			log.Printf("[ExpiryHandler] Failed to load booking %s: %v", p.BookingID, err)
			return err
		}
		if b == nil || b.Status != models.BookingStatusPending {
			return nil
		}

		log.Printf("[ExpiryHandler] Expiring stale pending booking %s", p.BookingID)
		return bookings.Cancel(ctx, p.BookingID)
	}
}

// sweepStalePending periodically cancels pending records older than the TTL.
func sweepStalePending(bookings reservation.BookingRepository, pendingTTL time.Duration) {
	ticker := time.NewTicker(pendingTTL)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		swept, err := bookings.ExpireStalePending(ctx, time.Now().Add(-pendingTTL))
		cancel()
		if err != nil {
			log.Printf("[ExpiryWorker] Sweep failed: %v", err)
			continue
		}
		if swept > 0 {
			log.Printf("[ExpiryWorker] Swept %d stale pending bookings", swept)
		}
	}
}
