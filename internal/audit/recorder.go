// Package audit records authentication events. Recording is best effort and
// never fails the request that produced the event.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"social-service/internal/models"
)

type Recorder interface {
	Record(ctx context.Context, ev models.AuthEvent)
}

type clientKey struct{}

// ClientInfo identifies the caller behind an event.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

func ClientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientKey{}).(ClientInfo)
	return info
}

// NewEvent stamps an event with the current time and the caller in ctx.
func NewEvent(ctx context.Context, t models.AuthEventType, userID string) models.AuthEvent {
	now := time.Now().UTC()
	info := ClientInfoFrom(ctx)
	return models.AuthEvent{
		UserID:    userID,
		EventDate: now.Format("2006-01-02"),
		EventTime: now,
		EventType: t,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
}

type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (l *LogRecorder) Record(_ context.Context, ev models.AuthEvent) {
	l.logger.Debug("auth event",
		zap.String("event_type", string(ev.EventType)),
		zap.String("user_id", ev.UserID),
		zap.String("ip_address", ev.IPAddress),
		zap.String("token_id", ev.TokenID),
		zap.String("details", ev.Details))
}

// BatchWriter is the part of the ClickHouse client the recorder uses.
type BatchWriter interface {
	Exec(ctx context.Context, query string, args ...any) error
	BatchInsert(ctx context.Context, query string, rows [][]any) error
}

const createAuthEventsTable = `
CREATE TABLE IF NOT EXISTS auth_events (
	user_id    String,
	event_date Date,
	event_time DateTime64(3, 'UTC'),
	event_type LowCardinality(String),
	ip_address String,
	user_agent String,
	token_id   String,
	details    String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(event_date)
ORDER BY (event_type, event_date, user_id)`

const insertAuthEvents = `INSERT INTO auth_events
	(user_id, event_date, event_time, event_type, ip_address, user_agent, token_id, details)`

// ClickHouseRecorder buffers events and writes them in batches, flushing when
// batchSize events are pending or every flushInterval.
type ClickHouseRecorder struct {
	writer        BatchWriter
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	events    chan models.AuthEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewClickHouseRecorder(ctx context.Context, writer BatchWriter, batchSize int, flushInterval time.Duration, logger *zap.Logger) (*ClickHouseRecorder, error) {
	if err := writer.Exec(ctx, createAuthEventsTable); err != nil {
		return nil, err
	}
	return startRecorder(writer, batchSize, flushInterval, logger), nil
}

func startRecorder(writer BatchWriter, batchSize int, flushInterval time.Duration, logger *zap.Logger) *ClickHouseRecorder {
	if batchSize < 1 {
		batchSize = 1
	}
	r := &ClickHouseRecorder{
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		events:        make(chan models.AuthEvent, batchSize*4),
		done:          make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record drops the event with a warning when the buffer is full.
func (r *ClickHouseRecorder) Record(_ context.Context, ev models.AuthEvent) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("audit buffer full, dropping event",
			zap.String("event_type", string(ev.EventType)),
			zap.String("user_id", ev.UserID))
	}
}

func (r *ClickHouseRecorder) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]models.AuthEvent, 0, r.batchSize)
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			r.flush(batch)
			batch = batch[:0]
		}
	}
}

func (r *ClickHouseRecorder) flush(batch []models.AuthEvent) {
	if len(batch) == 0 {
		return
	}
	rows := make([][]any, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []any{
			ev.UserID, ev.EventTime, ev.EventTime, string(ev.EventType),
			ev.IPAddress, ev.UserAgent, ev.TokenID, ev.Details,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.writer.BatchInsert(ctx, insertAuthEvents, rows); err != nil {
		r.logger.Error("failed to write audit batch", zap.Int("events", len(rows)), zap.Error(err))
		return
	}
	r.logger.Debug("audit batch written", zap.Int("events", len(rows)))
}

// Close stops accepting events and waits for the final flush.
func (r *ClickHouseRecorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.events) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
