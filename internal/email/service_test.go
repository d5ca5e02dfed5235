package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/circuitbreaker"
)

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestSender(d dialer) *SMTPSender {
	s := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 25, From: "noreply@clinic.test", Timeout: time.Second})
	s.dialer = d
	return s
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(d)

	err := s.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hi", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"ana@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@clinic.test"}, d.sent[0].GetHeader("From"))
}

func TestSMTPSender_OpensBreakerAfterFailures(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	s := newTestSender(d)

	for i := 0; i < 3; i++ {
		assert.Error(t, s.Send(context.Background(), Message{To: "a@b.c"}))
	}
	err := s.Send(context.Background(), Message{To: "a@b.c"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestSMTPSender_HonoursContext(t *testing.T) {
	s := newTestSender(&fakeDialer{delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, Message{To: "a@b.c"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewService_DisabledLogsOnly(t *testing.T) {
	svc := NewService(config.SMTPConfig{Enabled: false})
	_, ok := svc.(*logSender)
	assert.True(t, ok)
	assert.NoError(t, svc.Send(context.Background(), Message{To: "a@b.c"}))
}
