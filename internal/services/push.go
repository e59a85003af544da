package services

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Pusher sends a push notification to a device
type Pusher interface {
	Push(ctx context.Context, deviceToken string, activity Activity) error
}

// APNsPusher sends push notifications through Apple Push Notification service
type APNsPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNsPusher creates a token-authenticated APNs client
func NewAPNsPusher(keyFile, keyID, teamID, topic string, production bool) (*APNsPusher, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsPusher{client: client, topic: topic}, nil
}

// Push implements Pusher
func (p *APNsPusher) Push(ctx context.Context, deviceToken string, activity Activity) error {
	res, err := p.client.PushWithContext(ctx, buildNotification(deviceToken, p.topic, activity))
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

func buildNotification(deviceToken, topic string, activity Activity) *apns2.Notification {
	p := payload.NewPayload().
		AlertBody(alertBody(activity)).
		Sound("default").
		Custom("type", activity.Type).
		Custom("actor_id", activity.ActorID)
	if activity.PostID != "" {
		p.Custom("post_id", activity.PostID)
	}

	return &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       topic,
		Payload:     p,
	}
}

func alertBody(activity Activity) string {
	actor := activity.ActorUsername
	if actor == "" {
		actor = "Someone"
	}
	switch activity.Type {
	case ActivityFollow:
		return actor + " started following you"
	case ActivityLike:
		return actor + " liked your post"
	case ActivityComment:
		return actor + " commented on your post"
	default:
		return actor + " interacted with you"
	}
}
