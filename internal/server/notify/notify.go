// Package notify delivers one-time codes to users by email.
package notify

import (
	"context"
	"fmt"
)

type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Message is the payload of a code delivery. It is also the body of the
// queued email task, so it must stay JSON friendly.
type Message struct {
	Kind Kind   `json:"kind"`
	To   string `json:"to"`
	Code int    `json:"code"`
}

func (m Message) Validate() error {
	switch m.Kind {
	case KindVerification, KindPasswordReset:
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	if m.To == "" {
		return fmt.Errorf("message has no recipient")
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}
