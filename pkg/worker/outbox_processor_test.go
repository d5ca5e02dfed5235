package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type mockOutboxRepo struct{ mock.Mock }

func (m *mockOutboxRepo) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit, lease)
	if e, ok := args.Get(0).([]*model.OutboxEvent); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return m.Called(ctx, id, errMsg, retryAt).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockBroker struct{ mock.Mock }

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	return nil, args.Error(1)
}

func (m *mockBroker) Close() error { return nil }

var workerNow = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
		Channel:       "clinic.events",
	}
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Output: io.Discard})
}

func newProcessor(t *testing.T) (*OutboxProcessor, *mockOutboxRepo, *mockBroker, *metrics.Metrics) {
	t.Helper()
	repo := new(mockOutboxRepo)
	broker := new(mockBroker)
	m := metrics.NewNop()
	p, err := NewOutboxProcessor(repo, broker, testConfig(), quietLogger(), m)
	require.NoError(t, err)
	p.now = func() time.Time { return workerNow }
	return p, repo, broker, m
}

func outboxEvent(eventType string, retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    json.RawMessage(`{"appointment_id":"x"}`),
		Status:     model.OutboxStatusPending,
		RetryCount: retries,
	}
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	for name, mutate := range map[string]func(*OutboxProcessorConfig){
		"batch size":     func(c *OutboxProcessorConfig) { c.BatchSize = 0 },
		"poll interval":  func(c *OutboxProcessorConfig) { c.PollInterval = 0 },
		"retry attempts": func(c *OutboxProcessorConfig) { c.RetryAttempts = 0 },
		"retry delay":    func(c *OutboxProcessorConfig) { c.RetryDelay = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewOutboxProcessor(new(mockOutboxRepo), new(mockBroker), cfg, quietLogger(), metrics.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestProcessBatch_PublishesAndMarksProcessed(t *testing.T) {
	p, repo, broker, m := newProcessor(t)
	created := outboxEvent(model.EventAppointmentCreated, 0)
	consulted := outboxEvent(model.EventConsultationRegistered, 0)

	repo.On("ClaimPending", mock.Anything, 10, 8*time.Second).Return([]*model.OutboxEvent{created, consulted}, nil)
	broker.On("Publish", mock.Anything, "clinic.events.appointment.created", created.Payload).Return(nil)
	broker.On("Publish", mock.Anything, "clinic.events.consultation.registered", consulted.Payload).Return(nil)
	repo.On("MarkProcessed", mock.Anything, created.ID).Return(nil)
	repo.On("MarkProcessed", mock.Anything, consulted.ID).Return(nil)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))
	repo.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestProcessBatch_SchedulesRetryWithBackoff(t *testing.T) {
	p, repo, broker, m := newProcessor(t)
	event := outboxEvent(model.EventAppointmentStateChanged, 1)

	repo.On("ClaimPending", mock.Anything, mock.Anything, mock.Anything).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis unavailable"))
	repo.On("MarkRetry", mock.Anything, event.ID, "redis unavailable", workerNow.Add(4*time.Second)).Return(nil)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventAppointmentStateChanged)))
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestProcessBatch_ParksEventAfterLastAttempt(t *testing.T) {
	p, repo, broker, m := newProcessor(t)
	event := outboxEvent(model.EventAppointmentDoctorAssigned, 2)

	repo.On("ClaimPending", mock.Anything, mock.Anything, mock.Anything).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout"))
	repo.On("MarkFailed", mock.Anything, event.ID, "timeout").Return(nil)

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
	repo.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatch_ClaimFailure(t *testing.T) {
	p, repo, _, m := newProcessor(t)
	repo.On("ClaimPending", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := p.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("claim_outbox_events", "error")))
}

func TestChannelWithoutPrefix(t *testing.T) {
	p, _, _, _ := newProcessor(t)
	p.config.Channel = ""
	assert.Equal(t, model.EventAppointmentCreated, p.channel(model.EventAppointmentCreated))
}

func TestOutboxCleanupWorker_DeletesPastRetention(t *testing.T) {
	repo := new(mockOutboxRepo)
	w := NewOutboxCleanupWorker(repo, 24*time.Hour, time.Hour, quietLogger())

	before := time.Now().UTC().Add(-24 * time.Hour)
	repo.On("DeleteProcessedBefore", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return !cutoff.Before(before) && cutoff.Before(before.Add(time.Minute))
	})).Return(int64(3), nil).Once()

	w.cleanup(context.Background())
	repo.AssertExpectations(t)
}

func TestOutboxCleanupWorker_StopsOnCancel(t *testing.T) {
	repo := new(mockOutboxRepo)
	w := NewOutboxCleanupWorker(repo, time.Hour, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}
