package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Dispatcher sends confirmations in the background. Delivery is best
// effort: a failure is logged and counted, never retried, and never
// reported to the caller that booked the appointment.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		metrics:  m,
	}
}

// Dispatch returns immediately. The send runs on a context detached from
// ctx so that finishing the HTTP request does not cancel it.
func (d *Dispatcher) Dispatch(ctx context.Context, c Confirmation) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.metrics.NotificationsFailed.Inc()
				log.Error().
					Interface("panic", r).
					Str("appointment_id", c.AppointmentID.String()).
					Msg("confirmation email panicked")
			}
		}()

		if err := d.notifier.SendAppointmentConfirmation(sendCtx, c); err != nil {
			d.metrics.NotificationsFailed.Inc()
			log.Warn().
				Err(err).
				Str("appointment_id", c.AppointmentID.String()).
				Msg("failed to send appointment confirmation")
			return
		}
		d.metrics.NotificationsSent.Inc()
	}()
}

// Wait blocks until in-flight sends finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
