package notifier

import "context"

// Sender delivers one message over a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// toggler is implemented by senders whose configuration can be empty or
// change at runtime.
type toggler interface {
	Enabled() bool
}

func enabled(s Sender) bool {
	t, ok := s.(toggler)
	return !ok || t.Enabled()
}
