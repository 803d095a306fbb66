package notifier

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrDeliveryFailed wraps any failure to hand a message to the sink.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notifier accepts an already-formatted message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. Used when no chat is configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.Log.WithField("sink", "log").Info(text)
	return nil
}
