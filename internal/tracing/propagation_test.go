package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithUser(ctx, "tg:456")
	ctx = WithRequestID(ctx, "00789")
	ctx = WithSessionID(ctx, "session-abc")

	var buf bytes.Buffer
	logger := PropagateToLogger(ctx, zerolog.New(&buf))
	logger.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"trace-123", "tg:456", "00789", "session-abc"} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not in log output", want)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")

	var buf bytes.Buffer
	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("test")

	if !strings.Contains(buf.String(), "trace-xyz") {
		t.Error("Trace ID not in log output")
	}
}
