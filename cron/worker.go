package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"pawmeds/config"
	"pawmeds/models"
	"pawmeds/services/notification"
)

// ReminderWorker consumes the reminder queue and pushes due notifications
// to the device.
type ReminderWorker struct {
	srv    *asynq.Server
	sender *notification.FCMSender
	logger *zap.Logger
}

// NewReminderWorker builds the asynq server for the reminders queue.
func NewReminderWorker(cfg config.Config, sender *notification.FCMSender, logger *zap.Logger) *ReminderWorker {
	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisReminderQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				notification.QueueReminders: 1,
			},
		},
	)
	return &ReminderWorker{srv: srv, sender: sender, logger: logger}
}

// Run starts the worker in the background, retrying startup a few times
// before giving up.
func (w *ReminderWorker) Run() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TypeDeliverReminder, w.handleDeliver)
	mux.HandleFunc(notification.TypeShowSummary, w.handleDeliver)

	go func() {
		w.logger.Info("reminder worker starting")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := w.srv.Run(mux); err != nil {
				w.logger.Error("reminder worker failed to start",
					zap.Int("attempt", attempts), zap.Error(err))
				if attempts == maxAttempts {
					w.logger.Fatal("reminder worker: max retry attempts reached")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

// Shutdown stops the worker gracefully.
func (w *ReminderWorker) Shutdown() {
	w.srv.Shutdown()
}

// handleDeliver fires one due notification out to the device. The hidden
// payload is forwarded as FCM data so the app can deep-link on tap.
func (w *ReminderWorker) handleDeliver(ctx context.Context, task *asynq.Task) error {
	var dt notification.DeliveryTask
	if err := json.Unmarshal(task.Payload(), &dt); err != nil {
		w.logger.Error("reminder handler: invalid task payload", zap.Error(err))
		return err
	}

	data := map[string]string{"channel": dt.Channel}
	if len(dt.Payload) > 0 {
		payload, err := models.ParsePayload(dt.Payload)
		if err != nil {
			w.logger.Warn("reminder handler: unparseable reminder payload, delivering without deep link", zap.Error(err))
		} else {
			data["scheduleId"] = payload.ScheduleID
			data["petId"] = payload.PetID
			data["timeSlot"] = payload.TimeSlot
			data["kind"] = string(payload.Kind)
			data["treatmentType"] = string(payload.TreatmentType)
		}
	}

	if err := w.sender.Send(ctx, dt.UserID, dt.Title, dt.Body, dt.Channel, data); err != nil {
		w.logger.Error("reminder handler: delivery failed",
			zap.String("userId", dt.UserID), zap.Error(err))
		return err
	}
	return nil
}
