// Package reconcile implements the safety-net sweep that materializes
// orders for completed sessions whose webhook delivery never landed.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebabesclub/commerce/internal/metrics"
	"github.com/thebabesclub/commerce/internal/orders"
	"github.com/thebabesclub/commerce/internal/processor"
)

// Params are the per-run overrides; zero values fall back to defaults.
type Params struct {
	LookbackHours int  `json:"lookbackHours"`
	MaxSessions   int  `json:"maxSessions"`
	DryRun        bool `json:"dryRun"`
}

// Result summarizes one sweep.
type Result struct {
	SyncStartedAt   string   `json:"syncStartedAt"`
	SyncCompletedAt string   `json:"syncCompletedAt"`
	LookbackHours   int      `json:"lookbackHours"`
	WindowStart     int64    `json:"windowStart"`
	WindowEnd       int64    `json:"windowEnd"`
	Processed       int      `json:"processed"`
	Created         int      `json:"created"`
	Skipped         int      `json:"skipped"`
	Errors          int      `json:"errors"`
	CreatedOrders   []string `json:"createdOrders,omitempty"`
	DryRun          bool     `json:"dryRun,omitempty"`
}

const maxReportedOrders = 20

// Sweeper enumerates completed sessions from the processor and drives the
// materializer over each. Idempotency lives in the materializer, so a sweep
// overlapping webhook traffic or a previous sweep converges instead of
// duplicating.
type Sweeper struct {
	processor    processor.API
	materializer *orders.Materializer
	state        *StateStore
	metrics      *metrics.Publisher

	defaultLookbackHours int
	defaultMaxSessions   int
	nowFunc              func() time.Time
}

// NewSweeper wires a Sweeper. state and metrics may be nil.
func NewSweeper(proc processor.API, materializer *orders.Materializer, state *StateStore, pub *metrics.Publisher, defaultLookbackHours, defaultMaxSessions int) *Sweeper {
	return &Sweeper{
		processor:            proc,
		materializer:         materializer,
		state:                state,
		metrics:              pub,
		defaultLookbackHours: defaultLookbackHours,
		defaultMaxSessions:   defaultMaxSessions,
		nowFunc:              time.Now,
	}
}

// Run executes one sweep. Enumeration errors end the walk but keep the
// partial progress; per-session errors are counted and skipped.
func (s *Sweeper) Run(ctx context.Context, params Params) (*Result, error) {
	lookback := params.LookbackHours
	if lookback <= 0 {
		lookback = s.defaultLookbackHours
	}
	maxSessions := params.MaxSessions
	if maxSessions <= 0 {
		maxSessions = s.defaultMaxSessions
	}

	started := s.nowFunc().UTC()
	windowEnd := started
	windowStart := started.Add(-time.Duration(lookback) * time.Hour)

	result := &Result{
		SyncStartedAt: started.Format(time.RFC3339),
		LookbackHours: lookback,
		WindowStart:   windowStart.Unix(),
		WindowEnd:     windowEnd.Unix(),
		DryRun:        params.DryRun,
	}

	err := s.processor.ListCompletedSessions(ctx, windowStart, windowEnd, maxSessions, func(sess *processor.SessionData) error {
		result.Processed++
		s.sweepSession(ctx, sess, params.DryRun, result)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("session enumeration failed, keeping partial sweep")
		result.Errors++
	}

	result.SyncCompletedAt = s.nowFunc().UTC().Format(time.RFC3339)

	if !params.DryRun && s.state != nil {
		state := &SyncState{
			LastSyncStartedAt:   result.SyncStartedAt,
			LastSyncCompletedAt: result.SyncCompletedAt,
			LookbackStart:       result.WindowStart,
			LookbackEnd:         result.WindowEnd,
			Processed:           result.Processed,
			Created:             result.Created,
			Skipped:             result.Skipped,
			Errors:              result.Errors,
			UpdatedAt:           result.SyncCompletedAt,
		}
		if err := s.state.Put(ctx, state); err != nil {
			log.Warn().Err(err).Msg("sync state write failed")
		}
	}

	if pubErr := s.metrics.PublishCounts(ctx, map[string]int{
		"SweepProcessed": result.Processed,
		"SweepCreated":   result.Created,
		"SweepSkipped":   result.Skipped,
		"SweepErrors":    result.Errors,
	}); pubErr != nil {
		log.Warn().Err(pubErr).Msg("sweep metrics publish failed")
	}

	log.Info().
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Bool("dryRun", result.DryRun).
		Msg("reconciliation sweep finished")

	return result, nil
}

func (s *Sweeper) sweepSession(ctx context.Context, sess *processor.SessionData, dryRun bool, result *Result) {
	sessionID := sess.ID
	for _, k := range []string{"sessionId", "session_id"} {
		if v := sess.Metadata[k]; v != "" {
			sessionID = v
			break
		}
	}
	quoteSignature := ""
	for _, k := range []string{"quoteSignature", "quote_signature"} {
		if v := sess.Metadata[k]; v != "" {
			quoteSignature = v
			break
		}
	}

	outcome, snap, err := s.materializer.Materialize(ctx, orders.Input{
		SessionID:      sessionID,
		Data:           *sess,
		QuoteSignature: quoteSignature,
		Source:         orders.SourceReconciliation,
		DryRun:         dryRun,
	})
	if err != nil {
		result.Errors++
		return
	}

	switch outcome {
	case orders.OutcomeCreated:
		result.Created++
		if snap != nil && len(result.CreatedOrders) < maxReportedOrders {
			result.CreatedOrders = append(result.CreatedOrders, snap.OrderNumber)
		}
	default:
		result.Skipped++
	}
}
