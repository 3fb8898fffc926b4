package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"consult/infras/kafka"
	"consult/shared/constant"
	"consult/shared/timezone"
)

const (
	EventBookingReserved  = "booking.reserved"
	EventPaymentCaptured  = "payment.captured"
	EventPaymentFailed    = "payment.failed"
	EventStatusOverridden = "booking.status_overridden"
	EventOrderOrphaned    = "gateway.order_orphaned"
)

// BookingEvent is the payload published to the booking topic for every
// lifecycle change. Consumers key on BookingID, so events for one booking
// land on one partition in order.
type BookingEvent struct {
	Type       string `json:"type"`
	BookingID  string `json:"booking_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Actor      string `json:"actor,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// publish sends the event without blocking the request path. Delivery is
// best effort; failures are logged, never returned to the caller.
func (s *serviceImpl) publish(ctx context.Context, event BookingEvent) {
	event.OccurredAt = timezone.Format(timezone.Now(), constant.DateFormat)

	go func() {
		c := context.WithoutCancel(ctx)

		key := event.BookingID
		if key == "" {
			key = event.OrderID
		}

		err := s.kafka.SendMessages(c, s.cfg.Kafka.BookingTopic, kafka.Message{
			Key:   key,
			Value: event,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("type", event.Type).
				Str("booking_id", event.BookingID).
				Msg("failed to publish booking event")
		}
	}()
}
