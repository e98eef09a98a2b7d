package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when every worker call failed for the
// configured number of consecutive rounds and the orchestrator halts rather
// than retrying indefinitely.
var ErrCircuitOpen = errors.New("extraction circuit breaker tripped: consecutive all-error rounds reached")

// BatchWorker claims and processes one batch. Implemented by ExtractionWorker.
type BatchWorker interface {
	ProcessNext(ctx context.Context, limit int) (BatchResult, error)
}

// PendingCounter reports the pending backlog. Implemented by ClaimService.
type PendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// RunSummary totals one orchestrator run.
type RunSummary struct {
	Rounds    int `json:"rounds"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Orchestrator drives the extraction pipeline: per round it fans out a fixed
// number of concurrent worker calls, joins them, scores the round, cools
// down and repeats until the backlog is empty or the circuit breaker trips.
// The pending count is refreshed only every few rounds: a slow or truncated
// worker response may have completed its server-side work anyway, so the
// count is the more trustworthy progress signal.
type Orchestrator struct {
	Worker  BatchWorker
	Pending PendingCounter
	Logger  *zap.Logger

	Concurrency      int
	BatchSize        int
	Cooldown         time.Duration
	CircuitThreshold int
	RefreshRounds    int
}

// NewOrchestrator creates an orchestrator with sane defaults for any unset knob.
func NewOrchestrator(worker BatchWorker, pending PendingCounter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Worker:           worker,
		Pending:          pending,
		Logger:           logger,
		Concurrency:      4,
		BatchSize:        10,
		Cooldown:         5 * time.Second,
		CircuitThreshold: 3,
		RefreshRounds:    5,
	}
}

type roundOutcome struct {
	result BatchResult
	err    error
}

// Run processes the backlog to exhaustion. It returns the totals plus
// ErrCircuitOpen if it halted, or the context error on cancellation.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{}

	pending, err := o.Pending.PendingCount(ctx)
	if err != nil {
		return summary, err
	}
	o.Logger.Info("Pipeline run starting", zap.Int64("pending", pending))

	consecutiveAllError := 0
	for pending > 0 {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcomes := o.runRound(ctx)
		summary.Rounds++

		callErrors := 0
		roundProcessed := 0
		for _, oc := range outcomes {
			if oc.err != nil {
				callErrors++
				continue
			}
			roundProcessed += oc.result.Total
			summary.Processed += oc.result.Total
			summary.Succeeded += oc.result.Success
			summary.Failed += oc.result.Failed
		}

		// Only total call failures count against the breaker; individual
		// review failures are normal operation.
		if callErrors == len(outcomes) {
			consecutiveAllError++
			o.Logger.Error("All worker calls in round failed",
				zap.Int("round", summary.Rounds),
				zap.Int("consecutive", consecutiveAllError))
			if consecutiveAllError >= o.CircuitThreshold {
				return summary, ErrCircuitOpen
			}
		} else {
			consecutiveAllError = 0
		}

		if roundProcessed == 0 || summary.Rounds%o.RefreshRounds == 0 {
			pending, err = o.Pending.PendingCount(ctx)
			if err != nil {
				return summary, err
			}
			o.Logger.Info("Pending backlog refreshed",
				zap.Int64("pending", pending), zap.Int("round", summary.Rounds))
		}

		if pending > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(o.Cooldown):
			}
		}
	}

	o.Logger.Info("Pipeline run finished",
		zap.Int("rounds", summary.Rounds),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// runRound fans out the concurrent worker calls and joins them; the round is
// scored only after every call completed or timed out.
func (o *Orchestrator) runRound(ctx context.Context) []roundOutcome {
	outcomes := make([]roundOutcome, o.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < o.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			result, err := o.Worker.ProcessNext(ctx, o.BatchSize)
			outcomes[slot] = roundOutcome{result: result, err: err}
		}(i)
	}
	wg.Wait()
	return outcomes
}
