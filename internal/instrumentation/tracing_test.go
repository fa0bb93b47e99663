package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestSpansWithoutProvider(t *testing.T) {
	ctx := context.Background()

	ctx, span := StartProviderSpan(ctx, "GOOGLE", OperationListCalendars)
	EndSpan(span, nil)

	_, span = StartToolSpan(ctx, "integration_list")
	EndSpan(span, errors.New("failed"))

	_, span = StartSpan(ctx, "internal")
	EndSpan(span, nil)

	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("GetTraceID without span = %q, want empty", id)
	}
}
