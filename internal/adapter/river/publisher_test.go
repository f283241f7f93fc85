package river_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"

	riveradapter "github.com/calegria/opsgate/internal/adapter/river"
	"github.com/calegria/opsgate/internal/adapter/sqlite"
	"github.com/calegria/opsgate/internal/domain"
)

// setupStore opens a file-backed store on a single connection. River's
// migrations and the app schema share the database, like in production.
func setupStore(t *testing.T) (*sqlite.Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", t.TempDir()+"/river_test.db")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("setting WAL: %v", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, db
}

func setupClient(t *testing.T, store *sqlite.Store, db *sql.DB) *riveradapter.Client {
	t.Helper()

	notifications := sqlite.NewNotificationRepository(store)
	entitlements := sqlite.NewEntitlementRepository(store)

	client, err := riveradapter.Setup(context.Background(), db, notifications, entitlements)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	return client
}

func startClient(t *testing.T, client *riveradapter.Client) {
	t.Helper()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})
}

// waitForJob drains completion events until one of the given kind
// arrives. The periodic rollover job also completes on start, so tests
// cannot assume the first completion is theirs.
func waitForJob(t *testing.T, ch <-chan *goriver.Event, kind string) *goriver.Event {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-ch:
			if event.Job.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q job completion", kind)
		}
	}
}

func TestPublisher_Publish_EnqueuesJob(t *testing.T) {
	store, db := setupStore(t)
	client := setupClient(t, store, db)
	ctx := context.Background()

	// Subscribe to job completions before starting so we don't miss events.
	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	startClient(t, client)

	pub := riveradapter.NewPublisher(client)
	event := domain.Event{
		Kind:       domain.EventInstanceActivated,
		TenantID:   "t-1",
		ServiceID:  "svc-1",
		InstanceID: "i-1",
		OccurredAt: time.Now().UTC(),
	}

	if err := pub.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitForJob(t, subscribeChan, "event.published")

	// The worker fanned the event out into a notification row.
	notifications := sqlite.NewNotificationRepository(store)
	stored, err := notifications.ListByRecipient(ctx, "t-1", 10)
	if err != nil {
		t.Fatalf("listing notifications: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d notifications, want 1", len(stored))
	}
	if stored[0].Title != "Service activated" {
		t.Errorf("Title = %q, want %q", stored[0].Title, "Service activated")
	}
}

func TestPublisher_Publish_PreservesEventData(t *testing.T) {
	store, db := setupStore(t)
	client := setupClient(t, store, db)
	ctx := context.Background()

	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	startClient(t, client)

	pub := riveradapter.NewPublisher(client)
	event := domain.Event{
		Kind:      domain.EventQuotaWarning,
		TenantID:  "t-42",
		ServiceID: "svc-7",
		Detail:    "85 of 100 used",
	}

	if err := pub.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	completed := waitForJob(t, subscribeChan, "event.published")

	// Verify the job carried the right args by checking the encoded JSON.
	args := completed.Job.EncodedArgs
	if args == nil {
		t.Fatal("expected encoded args, got nil")
	}
	argsStr := string(args)
	for _, want := range []string{`"kind":"quota.warning"`, `"tenant_id":"t-42"`, `"service_id":"svc-7"`, `"detail":"85 of 100 used"`} {
		if !strings.Contains(argsStr, want) {
			t.Errorf("encoded args missing %s, got: %s", want, argsStr)
		}
	}
}

func TestRolloverWorker_ResetsElapsedQuota(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	// Seed an entitlement whose daily window elapsed, behind the FK chain.
	tenants := sqlite.NewTenantRepository(store)
	if err := tenants.CreateReseller(ctx, domain.Reseller{ID: "r-1", Name: "Reseller", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seeding reseller: %v", err)
	}
	if err := tenants.CreateTenant(ctx, domain.Tenant{ID: "t-1", ResellerID: "r-1", Name: "Acme", Slug: "acme", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}
	catalog := sqlite.NewCatalogRepository(store)
	if err := catalog.CreateService(ctx, domain.NewServiceDefinition("svc-1", "voice-agent", "Voice Agent", domain.CategoryVoice, domain.PricingPerUnit, nil)); err != nil {
		t.Fatalf("seeding service: %v", err)
	}

	entitlements := sqlite.NewEntitlementRepository(store)
	ent := domain.NewClientEntitlement("e-1", "t-1", "svc-1", "", 100, domain.ResetDaily)
	ent.UsageResetAt = time.Now().UTC().Add(-25 * time.Hour)
	if err := entitlements.Upsert(ctx, ent); err != nil {
		t.Fatalf("seeding entitlement: %v", err)
	}
	usage := sqlite.NewUsageRepository(store)
	if _, err := usage.Record(ctx, domain.UsageEvent{ID: "u-1", TenantID: "t-1", ServiceID: "svc-1", Quantity: 60, OccurredAt: time.Now()}); err != nil {
		t.Fatalf("recording usage: %v", err)
	}

	client := setupClient(t, store, db)

	subscribeChan, subscribeCancel := client.Subscribe(goriver.EventKindJobCompleted)
	defer subscribeCancel()

	// The rollover periodic job runs on start.
	startClient(t, client)

	waitForJob(t, subscribeChan, "quota.rollover")

	got, err := entitlements.Get(ctx, "t-1", "svc-1")
	if err != nil {
		t.Fatalf("getting entitlement: %v", err)
	}
	if got.UsageConsumed != 0 {
		t.Errorf("UsageConsumed = %d, want 0 after rollover", got.UsageConsumed)
	}
}
