package services

import (
	"context"
	"log/slog"
	"strings"
)

// CodeDelivery is the seam where a real SMS gateway plugs in. The protocol
// never blocks on delivery and the code is never re-surfaced through it.
type CodeDelivery interface {
	Deliver(ctx context.Context, phone, code string) error
}

// LogDelivery is the stand-in transport until an SMS provider is wired up.
// It records that a code went out without ever logging the code itself.
type LogDelivery struct{}

func (LogDelivery) Deliver(_ context.Context, phone, _ string) error {
	slog.Info("verification code dispatched", "phone", MaskPhone(phone))
	return nil
}

// MaskPhone keeps the last two digits of a phone number for log correlation.
func MaskPhone(phone string) string {
	if len(phone) <= 2 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}
