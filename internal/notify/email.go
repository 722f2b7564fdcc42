package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type EmailMessage struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

type EmailSender interface {
	SendTemplate(ctx context.Context, msg EmailMessage) error
}

// PublishingEmailSender hands templated mail to the delivery pipeline as an
// email.requested event keyed by recipient.
type PublishingEmailSender struct {
	publisher Publisher
}

func NewPublishingEmailSender(publisher Publisher) *PublishingEmailSender {
	return &PublishingEmailSender{publisher: publisher}
}

type emailRequest struct {
	EmailMessage
	RequestedAt time.Time `json:"requested_at"`
}

func (s *PublishingEmailSender) SendTemplate(ctx context.Context, msg EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	payload, err := json.Marshal(emailRequest{EmailMessage: msg, RequestedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}
	return s.publisher.Publish(ctx, EventEmailRequested, payload, msg.To)
}
