package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/contract"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/errors"
)

const defaultKeepaliveInterval = 30 * time.Second

// KeepaliveWorker periodically emits a connection ping so NAT bindings and
// relay-side session entries stay warm between user messages. The relay also
// pings on its own schedule; the two mechanisms are independent.
type KeepaliveWorker struct {
	log      *slog.Logger
	emitter  contract.IEmitter
	interval time.Duration
}

func NewKeepaliveWorker(log *slog.Logger, emitter contract.IEmitter, interval time.Duration) *KeepaliveWorker {
	if interval <= 0 {
		interval = defaultKeepaliveInterval
	}
	return &KeepaliveWorker{log: log, emitter: emitter, interval: interval}
}

// Run sends a ping every interval until the context cancels. A missing
// transport is expected while the gateway reconnects and is skipped quietly.
func (w *KeepaliveWorker) Run(ctx context.Context) error {
	w.log.Info("Starting connection keepalive worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := w.emitter.Emit(event.NameConnectionPing, map[string]any{
				"ts": time.Now().UnixMilli(),
			})
			switch {
			case err == nil:
			case stderrors.Is(err, errors.ErrNoTransport):
				w.log.Debug("Keepalive skipped, no live transport")
			default:
				w.log.Warn("Keepalive ping failed", "error", err)
			}
		}
	}
}
