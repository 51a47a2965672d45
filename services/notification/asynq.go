package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"pawmeds/config"
	"pawmeds/models"
	"pawmeds/utils"
)

const (
	// QueueReminders is the asynq queue all reminder traffic runs on.
	QueueReminders = "reminders"

	// TypeDeliverReminder is a scheduled treatment reminder.
	TypeDeliverReminder = "reminder:deliver"
	// TypeShowSummary is the per-pet group-summary notification.
	TypeShowSummary = "reminder:summary"

	// listPageSize is the inspector page size when draining the queue.
	listPageSize = 500
)

// DeliveryTask is the asynq task body for one reminder. Payload is the
// engine's NotificationPayload, carried opaquely so reconciliation can read
// it back out of the pending set.
type DeliveryTask struct {
	UserID   string          `json:"userId"`
	Title    string          `json:"title"`
	Body     string          `json:"body"`
	Channel  string          `json:"channel"`
	GroupKey string          `json:"groupKey,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// AsynqPlugin implements Plugin on top of an asynq client/inspector pair.
// Scheduling a notification enqueues a task with ProcessAt set to the
// reminder instant and the notification ID as the task ID; the pending set
// is the queue's scheduled+pending tasks.
type AsynqPlugin struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewAsynqPlugin connects the reminder queue clients.
func NewAsynqPlugin(cfg config.Config) *AsynqPlugin {
	opt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisReminderQueueDB,
	}
	return &AsynqPlugin{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

// Close releases the underlying redis connections.
func (p *AsynqPlugin) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *AsynqPlugin) ready() error {
	if p == nil || p.client == nil || p.inspector == nil {
		return ErrPluginNotInitialized
	}
	return nil
}

func taskID(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func (p *AsynqPlugin) ScheduleAt(ctx context.Context, req Request) error {
	if err := p.ready(); err != nil {
		return err
	}

	var payload models.NotificationPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("schedule %d: bad payload: %w", req.ID, err)
	}

	body, err := json.Marshal(DeliveryTask{
		UserID:   payload.UserID,
		Title:    req.Title,
		Body:     req.Body,
		Channel:  req.Channel,
		GroupKey: req.GroupKey,
		Payload:  req.Payload,
	})
	if err != nil {
		return fmt.Errorf("schedule %d: %w", req.ID, err)
	}

	// Same ID replaces the earlier registration.
	if err := p.Cancel(ctx, req.ID); err != nil {
		return err
	}

	task := asynq.NewTask(TypeDeliverReminder, body)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueReminders),
		asynq.TaskID(taskID(req.ID)),
		asynq.ProcessAt(req.At),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("schedule %d: %w", req.ID, err)
	}
	return nil
}

func (p *AsynqPlugin) Cancel(ctx context.Context, id int32) error {
	if err := p.ready(); err != nil {
		return err
	}
	err := p.inspector.DeleteTask(QueueReminders, taskID(id))
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("cancel %d: %w", id, err)
	}
	return nil
}

func (p *AsynqPlugin) CancelAll(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	if _, err := p.inspector.DeleteAllScheduledTasks(QueueReminders); err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("cancel all scheduled: %w", err)
	}
	if _, err := p.inspector.DeleteAllPendingTasks(QueueReminders); err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("cancel all pending: %w", err)
	}
	return nil
}

func (p *AsynqPlugin) ListPending(ctx context.Context) ([]models.PendingNotification, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var out []models.PendingNotification
	lists := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		p.inspector.ListScheduledTasks,
		p.inspector.ListPendingTasks,
	}
	for _, list := range lists {
		tasks, err := listAllPages(list)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		for _, t := range tasks {
			if t.Type != TypeDeliverReminder {
				continue
			}
			id, err := strconv.ParseInt(t.ID, 10, 32)
			if err != nil {
				continue
			}
			var dt DeliveryTask
			if err := json.Unmarshal(t.Payload, &dt); err != nil {
				continue
			}
			out = append(out, models.PendingNotification{ID: int32(id), Payload: dt.Payload})
		}
	}
	return out, nil
}

// listAllPages drains every page of one inspector listing. Stopping after
// the first page would hide tasks from reconciliation, which treats the
// queue as ground truth.
func listAllPages(list func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error)) ([]*asynq.TaskInfo, error) {
	var out []*asynq.TaskInfo
	for page := 1; ; page++ {
		tasks, err := list(QueueReminders, asynq.PageSize(listPageSize), asynq.Page(page))
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
		if len(tasks) < listPageSize {
			return out, nil
		}
	}
}

// SummaryID is the deterministic notification ID of a pet's group summary.
func SummaryID(userID, petID string) int32 {
	return utils.StableNotificationID("summary", userID, petID)
}

func (p *AsynqPlugin) ShowGroupSummary(ctx context.Context, userID, petID string, summary Summary) error {
	if err := p.ready(); err != nil {
		return err
	}
	id := SummaryID(userID, petID)

	body, err := json.Marshal(DeliveryTask{
		UserID:  userID,
		Title:   summary.Title,
		Body:    summary.Body,
		Channel: ChannelReminders,
	})
	if err != nil {
		return fmt.Errorf("group summary: %w", err)
	}

	if err := p.CancelGroupSummary(ctx, userID, petID); err != nil {
		return err
	}
	task := asynq.NewTask(TypeShowSummary, body)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueReminders),
		asynq.TaskID(taskID(id)),
		asynq.ProcessAt(time.Now()),
		asynq.MaxRetry(1),
	)
	if err != nil {
		return fmt.Errorf("group summary: %w", err)
	}
	return nil
}

func (p *AsynqPlugin) CancelGroupSummary(ctx context.Context, userID, petID string) error {
	return p.Cancel(ctx, SummaryID(userID, petID))
}
