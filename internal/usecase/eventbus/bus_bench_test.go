package eventbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"opsconsole/internal/domain"
)

// BenchmarkPublish measures Publish with a countdown-sized payload, which is
// the highest-rate event the monitor emits.
func BenchmarkPublish(b *testing.B) {
	for _, subs := range []int{0, 1, 4, 16} {
		b.Run(fmt.Sprintf("subscribers=%d", subs), func(b *testing.B) {
			bus := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
			defer bus.Close()
			for i := 0; i < subs; i++ {
				bus.SubscribeAll(func(context.Context, domain.Event) {})
			}
			event := domain.NewEvent(domain.EventConnectionCountdown, time.Now(),
				domain.CountdownPayload{Seconds: 3, Active: true})
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bus.Publish(ctx, event)
			}
		})
	}
}
