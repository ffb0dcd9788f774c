package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/kitty/internal/notify"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
	fail bool
}

func (r *recorder) Publish(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)

	if r.fail {
		return errors.New("stream unavailable")
	}

	return nil
}

func TestWorker_DeliversEverythingBeforeShutdown(t *testing.T) {
	rec := &recorder{}
	w := notify.NewWorker(rec, 16)
	w.Start()

	user := uuid.New()
	for range 10 {
		w.Notify(notify.New(notify.TypeExpenseCreated, user))
	}

	w.Shutdown()

	assert.Len(t, rec.msgs, 10)
}

func TestWorker_PublishErrorsDoNotStopTheWorker(t *testing.T) {
	rec := &recorder{fail: true}
	w := notify.NewWorker(rec, 4)
	w.Start()

	w.Notify(notify.New(notify.TypeDebtCreated, uuid.New()), notify.New(notify.TypeDebtSettled, uuid.New()))
	w.Shutdown()

	assert.Len(t, rec.msgs, 2)
}

func TestWorker_DropsWhenFull(t *testing.T) {
	rec := &recorder{}
	w := notify.NewWorker(rec, 2)

	// Not started, so nothing drains the queue.
	for range 5 {
		w.Notify(notify.New(notify.TypeDebtCritical, uuid.New()))
	}

	w.Start()
	w.Shutdown()

	assert.Len(t, rec.msgs, 2)
}

func TestWorker_NotifyAfterShutdownDrops(t *testing.T) {
	rec := &recorder{}
	w := notify.NewWorker(rec, 4)
	w.Start()

	w.Notify(notify.New(notify.TypeDebtCreated, uuid.New()))
	w.Shutdown()

	assert.NotPanics(t, func() {
		w.Notify(notify.New(notify.TypeDebtSettled, uuid.New()))
	})
	assert.NotPanics(t, w.Shutdown)

	assert.Len(t, rec.msgs, 1)
}

func TestWorker_ConcurrentNotifyDuringShutdown(t *testing.T) {
	rec := &recorder{}
	w := notify.NewWorker(rec, 1024)
	w.Start()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				w.Notify(notify.New(notify.TypeExpenseCreated, uuid.New()))
			}
		})
	}

	w.Shutdown()
	wg.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.LessOrEqual(t, len(rec.msgs), 400)
}

func TestNew(t *testing.T) {
	user, event := uuid.New(), uuid.New()

	msg := notify.New(notify.TypeEventEnded, user, notify.WithEvent(event), notify.WithText("closed"))

	assert.Equal(t, notify.TypeEventEnded, msg.Type)
	assert.Equal(t, user, msg.UserID)
	assert.Equal(t, event, msg.EventID)
	assert.Equal(t, "closed", msg.Text)
	assert.NotEqual(t, uuid.Nil, msg.ID)
}
