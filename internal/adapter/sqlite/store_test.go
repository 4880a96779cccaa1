package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onboardiq/onboardiq/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSession(id string) domain.Session {
	now := time.Now().UTC()
	return domain.Session{
		ID:          id,
		CurrentStep: domain.StepVerification,
		Status:      domain.StatusInProgress,
		CompletedSteps: []domain.Step{
			domain.StepTenantSetup,
			domain.StepAdminUserCreation,
			domain.StepPlanSelection,
			domain.StepPaymentSetup,
			domain.StepFeatureConfiguration,
		},
		TenantID:    "tenant-1",
		AdminUserID: "account-1",
		BillingRef:  "billing-xyz",
		Data: domain.OnboardingData{
			TenantName:     "Acme Corp",
			TenantDomain:   "acme.example.com",
			AdminEmail:     "admin@acme.example.com",
			AdminFirstName: "Ada",
			Plan:           "pro",
			Features:       []string{"sso"},
			TrialDays:      14,
			Metadata:       map[string]string{"source": "signup-form"},
		},
		VerificationToken:          "tok-abc",
		VerificationTokenExpiresAt: now.Add(24 * time.Hour),
		IPAddress:                  "203.0.113.7",
		UserAgent:                  "curl/8.0",
		NextAction:                 "Check your email for the verification link",
		EstimatedCompletion:        now.Add(24 * time.Hour),
		SendWelcomeEmail:           true,
		AutoVerify:                 false,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// --- Sessions ---

func TestSessionStore_CreateGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := sampleSession("sess-1")
	if err := store.Sessions.Create(ctx, want); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Sessions.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.ID != want.ID || got.CurrentStep != want.CurrentStep || got.Status != want.Status {
		t.Errorf("got %q/%q/%q, want %q/%q/%q",
			got.ID, got.CurrentStep, got.Status, want.ID, want.CurrentStep, want.Status)
	}
	if len(got.CompletedSteps) != 5 || got.CompletedSteps[3] != domain.StepPaymentSetup {
		t.Errorf("completed steps = %v", got.CompletedSteps)
	}
	if got.TenantID != "tenant-1" || got.AdminUserID != "account-1" || got.BillingRef != "billing-xyz" {
		t.Errorf("provenance = %q/%q/%q", got.TenantID, got.AdminUserID, got.BillingRef)
	}
	if got.Data.TenantName != "Acme Corp" || got.Data.Plan != "pro" {
		t.Errorf("data = %+v", got.Data)
	}
	if len(got.Data.Features) != 1 || got.Data.Features[0] != "sso" {
		t.Errorf("features = %v", got.Data.Features)
	}
	if got.Data.Metadata["source"] != "signup-form" {
		t.Errorf("metadata = %v", got.Data.Metadata)
	}
	if got.VerificationToken != "tok-abc" {
		t.Errorf("token = %q", got.VerificationToken)
	}
	if !got.VerificationTokenExpiresAt.Equal(want.VerificationTokenExpiresAt) {
		t.Errorf("token expiry = %v, want %v", got.VerificationTokenExpiresAt, want.VerificationTokenExpiresAt)
	}
	if !got.VerifiedAt.IsZero() {
		t.Errorf("VerifiedAt = %v, want zero", got.VerifiedAt)
	}
	if !got.SendWelcomeEmail || got.AutoVerify {
		t.Errorf("flags = %v/%v", got.SendWelcomeEmail, got.AutoVerify)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSessionStore_GetByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Sessions.GetByID(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Update(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := sampleSession("sess-1")
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess.CurrentStep = domain.StepCompletion
	sess.Status = domain.StatusCompleted
	sess.CompletedSteps = append(sess.CompletedSteps, domain.StepVerification, domain.StepCompletion)
	sess.VerificationToken = ""
	sess.VerificationTokenExpiresAt = time.Time{}
	sess.VerifiedAt = time.Now().UTC()
	if err := store.Sessions.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Sessions.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.CurrentStep != domain.StepCompletion {
		t.Errorf("got %q/%q after update", got.Status, got.CurrentStep)
	}
	if got.VerificationToken != "" || !got.VerificationTokenExpiresAt.IsZero() {
		t.Error("token fields should round-trip as cleared")
	}
	if got.VerifiedAt.IsZero() {
		t.Error("VerifiedAt should be set")
	}
	if len(got.CompletedSteps) != 7 {
		t.Errorf("completed steps = %d, want 7", len(got.CompletedSteps))
	}
}

func TestSessionStore_Update_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Sessions.Update(context.Background(), sampleSession("ghost"))
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, status := range []domain.Status{
		domain.StatusCompleted, domain.StatusInProgress, domain.StatusCompleted,
	} {
		sess := sampleSession("sess-" + string(rune('a'+i)))
		sess.Status = status
		sess.CreatedAt = base.Add(time.Duration(i) * time.Second)
		sess.UpdatedAt = sess.CreatedAt
		if err := store.Sessions.Create(ctx, sess); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	all, err := store.Sessions.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != "sess-c" {
		t.Errorf("first = %q, want sess-c", all[0].ID)
	}

	completed := domain.StatusCompleted
	got, err := store.Sessions.List(ctx, domain.ListFilter{Status: &completed})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("completed = %d, want 2", len(got))
	}

	limited, err := store.Sessions.List(ctx, domain.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "sess-b" {
		t.Errorf("limited = %v", limited)
	}
}

// --- Tenants ---

func TestTenantStore_Create_DuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "acme.example.com", Plan: "free"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "other.example.com", Plan: "free"})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Field != "tenant name" {
		t.Errorf("field = %q, want tenant name", conflict.Field)
	}
}

func TestTenantStore_Create_DuplicateDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "acme.example.com", Plan: "free"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Other", Domain: "acme.example.com", Plan: "free"})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Field != "tenant domain" {
		t.Errorf("field = %q, want tenant domain", conflict.Field)
	}
}

func TestTenantStore_TrialEndsAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withTrial, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "A", Domain: "a.example.com", Plan: "pro", TrialDays: 14})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if withTrial.TrialEndsAt.IsZero() {
		t.Error("TrialEndsAt should be set when trial days are requested")
	}

	noTrial, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "B", Domain: "b.example.com", Plan: "free"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !noTrial.TrialEndsAt.IsZero() {
		t.Errorf("TrialEndsAt = %v, want zero without a trial", noTrial.TrialEndsAt)
	}
}

func TestTenantStore_SoftDelete_ReleasesNameAndDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "acme.example.com", Plan: "free"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken, err := store.Tenants.NameOrDomainTaken(ctx, "Acme", "acme.example.com")
	if err != nil {
		t.Fatalf("NameOrDomainTaken: %v", err)
	}
	if !taken {
		t.Fatal("live tenant should register as taken")
	}

	if err := store.Tenants.SoftDelete(ctx, tenant.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	taken, err = store.Tenants.NameOrDomainTaken(ctx, "Acme", "acme.example.com")
	if err != nil {
		t.Fatalf("NameOrDomainTaken: %v", err)
	}
	if taken {
		t.Error("soft-deleted tenant should release its name and domain")
	}

	// The released identity can be claimed again.
	if _, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "acme.example.com", Plan: "free"}); err != nil {
		t.Fatalf("re-Create after soft delete: %v", err)
	}

	// Repeated soft deletes are no-ops.
	if err := store.Tenants.SoftDelete(ctx, tenant.ID); err != nil {
		t.Fatalf("second SoftDelete: %v", err)
	}
}

func TestTenantStore_EnableFeature_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant, err := store.Tenants.Create(ctx, domain.NewTenant{Name: "Acme", Domain: "acme.example.com", Plan: "pro"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for range 2 {
		if err := store.Tenants.EnableFeature(ctx, tenant.ID, "sso"); err != nil {
			t.Fatalf("EnableFeature: %v", err)
		}
	}
	if err := store.Tenants.EnableFeature(ctx, tenant.ID, "audit-log"); err != nil {
		t.Fatalf("EnableFeature: %v", err)
	}

	features, err := store.Tenants.Features(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if len(features) != 2 || features[0] != "audit-log" || features[1] != "sso" {
		t.Errorf("features = %v, want [audit-log sso]", features)
	}
}

// --- Accounts ---

func createTestTenant(t *testing.T, store *Store) domain.Tenant {
	t.Helper()
	tenant, err := store.Tenants.Create(context.Background(), domain.NewTenant{
		Name: "Acme", Domain: "acme.example.com", Plan: "free",
	})
	if err != nil {
		t.Fatalf("creating tenant fixture: %v", err)
	}
	return tenant
}

func TestAccountStore_Create_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store)

	if _, err := store.Accounts.Create(ctx, domain.NewAccount{
		TenantID: tenant.ID, Email: "admin@acme.example.com", FirstName: "Ada",
	}); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err := store.Accounts.Create(ctx, domain.NewAccount{
		TenantID: tenant.ID, Email: "admin@acme.example.com", FirstName: "Grace",
	})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.Field != "admin email" {
		t.Errorf("field = %q, want admin email", conflict.Field)
	}
}

func TestAccountStore_SoftDelete_ReleasesEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := createTestTenant(t, store)

	account, err := store.Accounts.Create(ctx, domain.NewAccount{
		TenantID: tenant.ID, Email: "admin@acme.example.com", FirstName: "Ada",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken, err := store.Accounts.EmailTaken(ctx, "admin@acme.example.com")
	if err != nil {
		t.Fatalf("EmailTaken: %v", err)
	}
	if !taken {
		t.Fatal("live account should register as taken")
	}

	if err := store.Accounts.SoftDelete(ctx, account.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	taken, err = store.Accounts.EmailTaken(ctx, "admin@acme.example.com")
	if err != nil {
		t.Fatalf("EmailTaken: %v", err)
	}
	if taken {
		t.Error("soft-deleted account should release its email")
	}

	if _, err := store.Accounts.Create(ctx, domain.NewAccount{
		TenantID: tenant.ID, Email: "admin@acme.example.com", FirstName: "Grace",
	}); err != nil {
		t.Fatalf("re-Create after soft delete: %v", err)
	}
}

// --- Cancellation transaction ---

func TestCancelWithCleanup_CancelsAndReleases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenant := createTestTenant(t, store)
	account, err := store.Accounts.Create(ctx, domain.NewAccount{
		TenantID: tenant.ID, Email: "admin@acme.example.com", FirstName: "Ada",
	})
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}

	sess := sampleSession("sess-1")
	sess.TenantID = tenant.ID
	sess.AdminUserID = account.ID
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	sess.Status = domain.StatusCancelled
	sess.CancelReason = "changed our mind"
	if err := store.Sessions.CancelWithCleanup(ctx, sess); err != nil {
		t.Fatalf("CancelWithCleanup: %v", err)
	}

	got, err := store.Sessions.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if got.CancelReason != "changed our mind" {
		t.Errorf("cancel reason = %q", got.CancelReason)
	}
	if got.TenantID != tenant.ID || got.AdminUserID != account.ID {
		t.Error("cancelled session should keep tenant and account references")
	}

	taken, err := store.Tenants.NameOrDomainTaken(ctx, "Acme", "acme.example.com")
	if err != nil {
		t.Fatalf("NameOrDomainTaken: %v", err)
	}
	if taken {
		t.Error("tenant name should be released")
	}
	taken, err = store.Accounts.EmailTaken(ctx, "admin@acme.example.com")
	if err != nil {
		t.Fatalf("EmailTaken: %v", err)
	}
	if taken {
		t.Error("account email should be released")
	}
}

func TestCancelWithCleanup_NoProvisionedRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := sampleSession("sess-1")
	sess.TenantID = ""
	sess.AdminUserID = ""
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	sess.Status = domain.StatusCancelled
	sess.CancelReason = "nothing created yet"
	if err := store.Sessions.CancelWithCleanup(ctx, sess); err != nil {
		t.Fatalf("CancelWithCleanup: %v", err)
	}

	got, err := store.Sessions.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
}
