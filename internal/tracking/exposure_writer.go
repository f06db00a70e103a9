// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommendcore/internal/metrics"
)

// ExposureBatch is one response worth of exposures.
type ExposureBatch struct {
	UserID     string
	ContentIDs []string
}

// ExposureWriter records exposures off the request path.
// Enqueue never blocks; Serve drains the queue until its context ends.
type ExposureWriter struct {
	tracker      *ExposureTracker
	queue        chan ExposureBatch
	writeTimeout time.Duration
	logger       zerolog.Logger
	name         string
}

// NewExposureWriter creates a writer with room for queueSize pending batches.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewExposureWriter(tracker *ExposureTracker, queueSize int, writeTimeout time.Duration, logger zerolog.Logger) *ExposureWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	return &ExposureWriter{
		tracker:      tracker,
		queue:        make(chan ExposureBatch, queueSize),
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "exposure-writer").Logger(),
		name:         "exposure-writer",
	}
}

// Enqueue schedules a batch. Returns false if the queue is full and the
// batch was dropped.
func (w *ExposureWriter) Enqueue(userID string, contentIDs []string) bool {
	if userID == "" || len(contentIDs) == 0 {
		return true
	}
	ids := make([]string, len(contentIDs))
	copy(ids, contentIDs)

	select {
	case w.queue <- ExposureBatch{UserID: userID, ContentIDs: ids}:
		metrics.ExposureQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		metrics.ExposuresRecorded.WithLabelValues("dropped").Add(float64(len(ids)))
		return false
	}
}

// Pending returns the number of queued batches.
func (w *ExposureWriter) Pending() int {
	return len(w.queue)
}

// Serve implements suture.Service. On shutdown it flushes what is already
// queued, each write bounded by the write timeout.
func (w *ExposureWriter) Serve(ctx context.Context) error {
	w.logger.Info().Int("capacity", cap(w.queue)).Msg("Exposure writer started")

	for {
		select {
		case <-ctx.Done():
			w.flush()
			w.logger.Info().Msg("Exposure writer stopped")
			return ctx.Err()
		case batch := <-w.queue:
			w.write(context.Background(), batch)
		}
	}
}

// flush drains the queue without waiting for new batches.
func (w *ExposureWriter) flush() {
	for {
		select {
		case batch := <-w.queue:
			w.write(context.Background(), batch)
		default:
			return
		}
	}
}

func (w *ExposureWriter) write(parent context.Context, batch ExposureBatch) {
	metrics.ExposureQueueDepth.Set(float64(len(w.queue)))

	ctx, cancel := context.WithTimeout(parent, w.writeTimeout)
	defer cancel()

	if err := w.tracker.RecordExposures(ctx, batch.UserID, batch.ContentIDs); err != nil {
		metrics.ExposuresRecorded.WithLabelValues("error").Add(float64(len(batch.ContentIDs)))
		w.logger.Warn().Err(err).Str("user_id", batch.UserID).Int("items", len(batch.ContentIDs)).Msg("Failed to record exposures")
		return
	}
	metrics.ExposuresRecorded.WithLabelValues("success").Add(float64(len(batch.ContentIDs)))
}

// String implements fmt.Stringer for suture logging.
func (w *ExposureWriter) String() string {
	return w.name
}
