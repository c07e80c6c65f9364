package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"resale-tracker/internal/models"
	"resale-tracker/internal/provider"
	"resale-tracker/internal/store"
)

// ErrRunInProgress is returned when a run is requested while another
// one is still active.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// RunState is the lifecycle of one account run.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunAborted   RunState = "aborted"
)

// ItemState tracks a single (account, product) item through a run.
type ItemState string

const (
	ItemFetching  ItemState = "fetching"
	ItemUpserting ItemState = "upserting"
	ItemDone      ItemState = "done"
	ItemFailed    ItemState = "failed"
)

// RunSummary is the per-account outcome reported to operators.
type RunSummary struct {
	AccountID   string    `json:"account_id"`
	State       RunState  `json:"state"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	ErrorCount  int       `json:"error_count"`
	AbortReason string    `json:"abort_reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Runner orchestrates sync runs across (account, product) pairs with
// bounded parallelism. Provider pacing is a fixed inter-dispatch delay
// rather than a token bucket; under sustained upstream 429s this
// degrades to plain backoff, which is accepted.
type Runner struct {
	store     store.Store
	syncer    *Synchronizer
	workers   int
	callDelay time.Duration

	mu      gosync.Mutex
	state   RunState
	lastRun *RunSummary
}

// NewRunner builds a runner over the synchronizer.
func NewRunner(st store.Store, syncer *Synchronizer, workers int, callDelay time.Duration) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		store:     st,
		syncer:    syncer,
		workers:   workers,
		callDelay: callDelay,
		state:     RunIdle,
	}
}

// State returns the current run state and the last finished summary.
func (r *Runner) State() (RunState, *RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.lastRun
}

// TryStart atomically claims the runner for a new run. Callers that
// get false must not start one; the check and the state flip are a
// single step so two concurrent triggers cannot both pass.
func (r *Runner) TryStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RunRunning {
		return false
	}
	r.state = RunRunning
	return true
}

func (r *Runner) endRun() {
	r.mu.Lock()
	r.state = RunIdle
	r.mu.Unlock()
}

type itemOutcome struct {
	result  ItemResult
	state   ItemState
	authErr error
}

// RunAccount executes one full run for an account over the given
// products. The run aborts as a whole on an auth failure; any other
// per-item failure increments the error count and the run continues.
// The account's last-successful-sync marker moves only on Completed.
func (r *Runner) RunAccount(ctx context.Context, account models.SyncAccount, products []models.Product) RunSummary {
	summary := RunSummary{
		AccountID: account.AccountID,
		State:     RunRunning,
		StartedAt: time.Now(),
	}

	log.Printf("[Sync Runner] account %s: starting run over %d products with %d workers",
		account.AccountID, len(products), r.workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan models.Product)
	outcomes := make(chan itemOutcome, len(products))

	var wg gosync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range items {
				// cancellable between items, never mid-flight
				select {
				case <-runCtx.Done():
					return
				default:
				}
				outcomes <- r.runItem(runCtx, product)
			}
		}()
	}

	// dispatcher paces provider traffic with a fixed inter-call delay
	go func() {
		defer close(items)
		for i, product := range products {
			if i > 0 {
				select {
				case <-runCtx.Done():
					return
				case <-time.After(r.callDelay):
				}
			}
			select {
			case <-runCtx.Done():
				return
			case items <- product:
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var abortReason string
collect:
	for {
		select {
		case outcome := <-outcomes:
			switch {
			case outcome.authErr != nil:
				abortReason = outcome.authErr.Error()
				cancel()
			case outcome.state == ItemFailed:
				summary.ErrorCount++
			default:
				summary.Processed++
				summary.Skipped += outcome.result.NotMapped
			}
		case <-done:
			break collect
		}
	}

	// drain outcomes produced before the workers exited
	for {
		select {
		case outcome := <-outcomes:
			switch {
			case outcome.authErr != nil:
				// the abort is account-wide, not a per-item failure
				if abortReason == "" {
					abortReason = outcome.authErr.Error()
				}
			case outcome.state == ItemFailed:
				summary.ErrorCount++
			default:
				summary.Processed++
				summary.Skipped += outcome.result.NotMapped
			}
		default:
			if abortReason == "" && ctx.Err() != nil {
				abortReason = "run cancelled: " + ctx.Err().Error()
			}
			summary.FinishedAt = time.Now()
			return r.finish(account, summary, abortReason)
		}
	}
}

// runItem processes one product through the Fetching → Upserting →
// Done|Failed progression.
func (r *Runner) runItem(ctx context.Context, product models.Product) itemOutcome {
	result, err := r.syncer.SyncProduct(ctx, product)
	if err != nil {
		if provider.IsAuthError(err) {
			return itemOutcome{result: result, state: ItemFailed, authErr: err}
		}
		log.Printf("[Sync Runner] item %s failed: %v", product.StyleID, err)
		return itemOutcome{result: result, state: ItemFailed}
	}
	if result.ProviderErrors > 0 {
		return itemOutcome{result: result, state: ItemFailed}
	}
	return itemOutcome{result: result, state: ItemDone}
}

func (r *Runner) finish(account models.SyncAccount, summary RunSummary, abortReason string) RunSummary {
	// bookkeeping writes must land even when the run context is gone
	ctx := context.Background()
	if abortReason != "" {
		summary.State = RunAborted
		summary.AbortReason = abortReason
		log.Printf("[Sync Runner] account %s: run aborted: %s", account.AccountID, abortReason)
		if err := r.store.RecordAccountError(ctx, account.AccountID, abortReason); err != nil {
			log.Printf("[Sync Runner] account %s: could not record error: %v", account.AccountID, err)
		}
	} else {
		summary.State = RunCompleted
		log.Printf("[Sync Runner] account %s: run completed: %d processed, %d skipped, %d errors",
			account.AccountID, summary.Processed, summary.Skipped, summary.ErrorCount)
		if err := r.store.MarkAccountSynced(ctx, account.AccountID, summary.FinishedAt); err != nil {
			log.Printf("[Sync Runner] account %s: could not mark synced: %v", account.AccountID, err)
		}
		if summary.ErrorCount > 0 {
			msg := fmt.Sprintf("%d items failed in last run", summary.ErrorCount)
			if err := r.store.RecordAccountError(ctx, account.AccountID, msg); err != nil {
				log.Printf("[Sync Runner] account %s: could not record error: %v", account.AccountID, err)
			}
		}
	}

	r.mu.Lock()
	r.lastRun = &summary
	r.mu.Unlock()
	return summary
}

// RunAll syncs every active account over the full catalog, one account
// at a time. Per-account summaries are returned in order. Returns
// ErrRunInProgress when another run is still active, which also keeps
// overlapping cron ticks from stacking runs.
func (r *Runner) RunAll(ctx context.Context) ([]RunSummary, error) {
	if !r.TryStart() {
		return nil, ErrRunInProgress
	}
	defer r.endRun()
	return r.runAll(ctx)
}

// StartAll launches a full run in the background when none is active.
// Returns false when a run is already in progress.
func (r *Runner) StartAll(ctx context.Context) bool {
	if !r.TryStart() {
		return false
	}
	go func() {
		defer r.endRun()
		if _, err := r.runAll(ctx); err != nil {
			log.Printf("[Sync Runner] background run failed: %v", err)
		}
	}()
	return true
}

func (r *Runner) runAll(ctx context.Context) ([]RunSummary, error) {
	accounts, err := r.store.ListActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	products, err := r.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	summaries := make([]RunSummary, 0, len(accounts))
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			return summaries, ctx.Err()
		default:
		}
		summaries = append(summaries, r.RunAccount(ctx, account, products))
	}
	return summaries, nil
}
