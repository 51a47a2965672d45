package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"pawmeds/config"
)

// TokenLookup resolves a user's current device registration token.
type TokenLookup func(ctx context.Context, userID string) (string, error)

// FCMSender pushes a due reminder to the device. Sends are rate limited to
// stay inside the FCM per-project QPS budget.
type FCMSender struct {
	client  *messaging.Client
	tokens  TokenLookup
	limiter *rate.Limiter
}

// NewFCMSender initializes the Firebase app and Messaging client.
func NewFCMSender(ctx context.Context, cfg config.Config, tokens TokenLookup) (*FCMSender, error) {
	opt := option.WithCredentialsFile(cfg.FirebaseCredentialsFile)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("firebase: error initializing app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: error getting Messaging client: %w", err)
	}

	sendRate := cfg.FCMSendRate
	if sendRate <= 0 {
		sendRate = 1
	}
	return &FCMSender{
		client:  client,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(sendRate), sendRate),
	}, nil
}

// Send delivers one reminder notification to the user's device.
func (s *FCMSender) Send(ctx context.Context, userID, title, body, channel string, data map[string]string) error {
	token, err := s.tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("send: could not resolve device token for user %s: %w", userID, err)
	}
	if token == "" {
		return fmt.Errorf("send: user %s has no device token", userID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: channel,
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: failed to send FCM message: %w", err)
	}
	return nil
}
