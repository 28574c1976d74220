package notify

import (
	"context"
	"sync"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

// Message is one best-effort notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher fires notifications after the authoritative write has
// returned. Failures are logged and counted, never returned.
type Dispatcher struct {
	sender Sender
	async  bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, async bool) *Dispatcher {
	return &Dispatcher{sender: sender, async: async}
}

// Dispatch sends msgs, skipping empty and duplicate addresses. In async mode
// it returns immediately and the sends outlive the request context.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...Message) {
	if d == nil || d.sender == nil {
		return
	}
	batch := dedupe(msgs)
	if len(batch) == 0 {
		return
	}
	if !d.async {
		d.send(ctx, batch)
		return
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(detached, batch)
	}()
}

// Wait blocks until in-flight async sends finish. Called on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, batch []Message) {
	for _, m := range batch {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := d.sender.Send(sendCtx, m.To, m.Subject, m.Body)
		cancel()
		if err != nil {
			channel := Channel(m.To)
			metrics.NotificationFailures.WithLabelValues(channel).Inc()
			utils.Logger.WithError(err).WithFields(logrus.Fields{
				"to":      m.To,
				"subject": m.Subject,
				"channel": channel,
			}).Error("Best-effort notification failed")
		}
	}
}

func dedupe(msgs []Message) []Message {
	seen := make(map[string]bool, len(msgs))
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.To == "" {
			continue
		}
		key := m.To + "\x00" + m.Subject
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
