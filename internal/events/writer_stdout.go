package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// event writer used in dev
type StdoutWriter struct{}

func (s *StdoutWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	zap.S().Named("stdout_writer").Infow("event wrote", "type", e.Type(), "subject", e.Subject(), "data", string(e.Data()), "topic", topic)
	return nil
}

func (s *StdoutWriter) Close(_ context.Context) error {
	return nil
}

// DiscardWriter drops every event.
type DiscardWriter struct{}

func (d *DiscardWriter) Write(_ context.Context, _ string, _ cloudevents.Event) error {
	return nil
}

func (d *DiscardWriter) Close(_ context.Context) error {
	return nil
}
