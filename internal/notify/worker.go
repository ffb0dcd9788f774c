package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Worker publishes messages from a buffered queue on a single goroutine.
type Worker struct {
	msgCh     chan Message
	publisher Publisher
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewWorker(publisher Publisher, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		msgCh:     make(chan Message, bufferSize),
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining notifications before shutdown", "remaining", len(w.msgCh))

				for len(w.msgCh) > 0 {
					msg := <-w.msgCh
					if err := w.publisher.Publish(context.Background(), msg); err != nil {
						slog.Error("failed to publish notification during shutdown", "error", err, "type", msg.Type)
					}
				}

				return
			case msg := <-w.msgCh:
				if err := w.publisher.Publish(w.ctx, msg); err != nil {
					slog.Error("failed to publish notification", "error", err, "type", msg.Type)
				}
			}
		}
	})
}

// Notify enqueues msgs. A full queue drops the message with a warning, and
// after Shutdown every message is dropped.
func (w *Worker) Notify(msgs ...Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		for _, msg := range msgs {
			slog.Warn("notification worker stopped, dropping message", "type", msg.Type, "user_id", msg.UserID)
		}

		return
	}

	for _, msg := range msgs {
		select {
		case w.msgCh <- msg:
		default:
			slog.Warn("notification queue full, dropping message", "type", msg.Type, "user_id", msg.UserID)
		}
	}
}

// Shutdown stops accepting messages and publishes what is still queued.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}
