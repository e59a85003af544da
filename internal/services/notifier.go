package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Activity types
const (
	ActivityFollow  = "follow"
	ActivityLike    = "like"
	ActivityComment = "comment"
)

// Activity is an event delivered to the user it concerns
type Activity struct {
	Type          string `json:"type"`
	ActorID       string `json:"actor_id"`
	ActorUsername string `json:"actor_username,omitempty"`
	PostID        string `json:"post_id,omitempty"`
	CommentID     string `json:"comment_id,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Notifier delivers activity events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, activity Activity)
}

// NopNotifier drops every event
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(context.Context, string, Activity) {}

// ActivityPublisher fans an event out to live connections
type ActivityPublisher interface {
	Publish(ctx context.Context, userID string, activity Activity) error
}

// ActivityNotifier sends events to the websocket hub and, when the recipient
// registered a device, as a push notification
type ActivityNotifier struct {
	publisher ActivityPublisher
	pusher    Pusher
	users     UserStore
}

// NewActivityNotifier creates a notifier. pusher may be nil.
func NewActivityNotifier(publisher ActivityPublisher, pusher Pusher, users UserStore) *ActivityNotifier {
	return &ActivityNotifier{publisher: publisher, pusher: pusher, users: users}
}

// Notify implements Notifier
func (n *ActivityNotifier) Notify(ctx context.Context, recipientID string, activity Activity) {
	if activity.Timestamp == 0 {
		activity.Timestamp = time.Now().UnixMilli()
	}

	if err := n.publisher.Publish(ctx, recipientID, activity); err != nil {
		log.Warn().Err(err).Str("user_id", recipientID).Str("type", activity.Type).Msg("Failed to publish activity")
	}

	if n.pusher == nil {
		return
	}
	recipient, err := n.users.GetByID(ctx, recipientID)
	if err != nil || recipient.PushToken == "" {
		return
	}
	go func(ctx context.Context) {
		if err := n.pusher.Push(ctx, recipient.PushToken, activity); err != nil {
			log.Warn().Err(err).Str("user_id", recipientID).Msg("Failed to send push notification")
		}
	}(context.WithoutCancel(ctx))
}
