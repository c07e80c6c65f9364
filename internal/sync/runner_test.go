package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"resale-tracker/internal/models"
	"resale-tracker/internal/provider"
	"resale-tracker/internal/store"
)

func testAccount() models.SyncAccount {
	return models.SyncAccount{AccountID: "acct-1", Currency: "USD", IsActive: true}
}

func runnerSetup(products int) (*store.MemoryStore, *provider.MockClient, *provider.MockClient, *Runner, []models.Product) {
	st := store.NewMemoryStore()
	st.AddAccount(testAccount())

	clientA := provider.NewMockClient(models.ProviderA)
	clientB := provider.NewMockClient(models.ProviderB)

	var catalog []models.Product
	for i := 0; i < products; i++ {
		styleID := "STYLE-" + string(rune('A'+i))
		refA := "sx-" + styleID
		refB := "gt-" + styleID
		catalog = append(catalog, models.Product{
			ID:          uint(i + 1),
			StyleID:     styleID,
			ProviderAID: &refA,
			ProviderBID: &refB,
		})
		clientA.Snapshots[refA] = productSnapshot(models.ProviderA, refA, asOf1, 100)
		clientB.Snapshots[refB] = productSnapshot(models.ProviderB, refB, asOf1, 95)
	}

	opts := Options{MaxRetries: 0, RetryBackoff: 0, SalesWindow: time.Hour}
	syncer := NewSynchronizer(st, []provider.Client{clientA, clientB}, opts)
	runner := NewRunner(st, syncer, 1, 10*time.Millisecond)
	return st, clientA, clientB, runner, catalog
}

func TestRunAccountCompletes(t *testing.T) {
	st, _, _, runner, catalog := runnerSetup(3)

	summary := runner.RunAccount(context.Background(), testAccount(), catalog)

	if summary.State != RunCompleted {
		t.Fatalf("state = %s, want completed", summary.State)
	}
	if summary.Processed != 3 {
		t.Errorf("processed = %d, want 3", summary.Processed)
	}
	if summary.ErrorCount != 0 {
		t.Errorf("error count = %d, want 0", summary.ErrorCount)
	}

	acct, ok := st.Account("acct-1")
	if !ok {
		t.Fatal("account missing")
	}
	if acct.LastSyncedAt == nil {
		t.Error("completed run must move the last-synced marker")
	}
}

func TestRunAccountAuthFailureAborts(t *testing.T) {
	st, clientA, _, runner, catalog := runnerSetup(5)
	clientA.ErrAll = &provider.Error{Provider: models.ProviderA, Status: 401, Msg: "token expired"}

	summary := runner.RunAccount(context.Background(), testAccount(), catalog)

	if summary.State != RunAborted {
		t.Fatalf("state = %s, want aborted", summary.State)
	}
	if summary.AbortReason == "" {
		t.Error("abort reason must be recorded")
	}
	if summary.Processed != 0 {
		t.Errorf("processed = %d, want 0 after an account-wide auth failure", summary.Processed)
	}
	// the run stops instead of burning rate budget on doomed retries
	if clientA.SnapshotCalls > 2 {
		t.Errorf("snapshot calls = %d, want the run to stop after the first auth failure", clientA.SnapshotCalls)
	}

	acct, _ := st.Account("acct-1")
	if acct.LastSyncedAt != nil {
		t.Error("aborted run must not move the last-synced marker")
	}
	if acct.LastError == "" {
		t.Error("abort must leave the error visible on the account")
	}
}

func TestRunAccountItemFailureContinues(t *testing.T) {
	st, clientA, _, runner, catalog := runnerSetup(3)
	// one item 500s; the others are healthy
	clientA.Errs[*catalog[1].ProviderAID] = &provider.Error{Provider: models.ProviderA, Status: 500, Msg: "upstream blew up"}

	summary := runner.RunAccount(context.Background(), testAccount(), catalog)

	if summary.State != RunCompleted {
		t.Fatalf("state = %s, want completed despite one bad item", summary.State)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", summary.ErrorCount)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2", summary.Processed)
	}

	acct, _ := st.Account("acct-1")
	if acct.LastSyncedAt == nil {
		t.Error("run with item failures still completes and moves the marker")
	}
	if acct.LastError == "" {
		t.Error("item failures must stay visible to the operator")
	}
}

func TestRunAccountAuthFailuresDoNotInflateErrorCount(t *testing.T) {
	_, clientA, _, runner, catalog := runnerSetup(4)
	clientA.ErrAll = &provider.Error{Provider: models.ProviderA, Status: 403, Msg: "forbidden"}

	// more than one worker so several auth outcomes can land in one run
	runner.workers = 2
	runner.callDelay = 0

	summary := runner.RunAccount(context.Background(), testAccount(), catalog)

	if summary.State != RunAborted {
		t.Fatalf("state = %s, want aborted", summary.State)
	}
	if summary.ErrorCount != 0 {
		t.Errorf("error count = %d, want 0 when every failure is the account-wide auth failure", summary.ErrorCount)
	}
}

func TestRunnerRejectsOverlappingStarts(t *testing.T) {
	_, _, _, runner, _ := runnerSetup(0)

	if !runner.TryStart() {
		t.Fatal("first claim must succeed")
	}
	if runner.TryStart() {
		t.Error("second claim must fail while a run is active")
	}
	if _, err := runner.RunAll(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunAll error = %v, want ErrRunInProgress", err)
	}
	if runner.StartAll(context.Background()) {
		t.Error("StartAll must be rejected while a run is active")
	}

	runner.endRun()
	if !runner.TryStart() {
		t.Error("claim must succeed again once the run ends")
	}
}

func TestRunAccountCancelledBetweenItems(t *testing.T) {
	_, _, _, runner, catalog := runnerSetup(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := runner.RunAccount(ctx, testAccount(), catalog)
	if summary.State != RunAborted {
		t.Errorf("state = %s, want aborted for a cancelled run", summary.State)
	}
	if summary.Processed != 0 {
		t.Errorf("processed = %d, want 0", summary.Processed)
	}
}

func TestRunAllSyncsEveryActiveAccount(t *testing.T) {
	st, clientA, clientB, _, _ := runnerSetup(0)
	st.AddAccount(models.SyncAccount{AccountID: "acct-2", Currency: "USD", IsActive: true})
	st.AddAccount(models.SyncAccount{AccountID: "acct-3", IsActive: false})

	ctx := context.Background()
	refA := "sx-STYLE-Z"
	clientA.Snapshots[refA] = productSnapshot(models.ProviderA, refA, asOf1, 100)
	if _, err := st.GetOrCreateProduct(ctx, "STYLE-Z", store.ProductAttrs{ProviderAID: &refA}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	opts := Options{MaxRetries: 0, SalesWindow: time.Hour}
	syncer := NewSynchronizer(st, []provider.Client{clientA, clientB}, opts)
	runner := NewRunner(st, syncer, 2, 0)

	summaries, err := runner.RunAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two active accounts, the inactive one is skipped
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	for _, summary := range summaries {
		if summary.State != RunCompleted {
			t.Errorf("account %s state = %s, want completed", summary.AccountID, summary.State)
		}
	}
}
