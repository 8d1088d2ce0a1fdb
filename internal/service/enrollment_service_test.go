package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/notify"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/sync"
)

func floatPtr(v float64) *float64 {
	return &v
}

// enrollmentFixture wires the enrollment service over memory stores with
// the platform boundary mocked. The stage ladder is Silver (order 1,
// $100 purchase / $500 LTV) then Gold (order 2, $500 purchase /
// $2000 LTV), each with a provisioned platform discount.
type enrollmentFixture struct {
	clients     *repository.MemoryClientRepository
	programs    *repository.MemoryClubProgramRepository
	stages      *repository.MemoryClubStageRepository
	customers   *repository.MemoryCustomerRepository
	enrollments *repository.MemoryEnrollmentRepository
	workflows   *sync.StateMachine
	provider    *MockCRMProvider
	publisher   *MockEventPublisher
	notifier    *MockNotifier
	service     EnrollmentService

	client *domain.Client
	silver *domain.ClubStage
	gold   *domain.ClubStage
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	ctx := context.Background()

	f := &enrollmentFixture{
		clients:     repository.NewMemoryClientRepository(),
		programs:    repository.NewMemoryClubProgramRepository(),
		stages:      repository.NewMemoryClubStageRepository(),
		customers:   repository.NewMemoryCustomerRepository(),
		enrollments: repository.NewMemoryEnrollmentRepository(),
		workflows:   sync.NewStateMachine(sync.NewMemoryStateStore()),
		provider:    NewMockCRMProvider(),
		publisher:   NewMockEventPublisher(),
		notifier:    NewMockNotifier(),
	}

	now := time.Now()
	f.client = &domain.Client{
		ID:            "client-1",
		CRMType:       domain.CRMTypeCommerce7,
		TenantShop:    "silver-oak-cellars",
		OrgName:       "Silver Oak Cellars",
		AccessToken:   "tok-1",
		SetupComplete: true,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.clients.Create(ctx, f.client); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}

	program := &domain.ClubProgram{
		ID:        "prog-1",
		ClientID:  f.client.ID,
		Name:      "Silver Oak Wine Club",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.programs.Create(ctx, program); err != nil {
		t.Fatalf("failed to seed program: %v", err)
	}

	f.silver = &domain.ClubStage{
		ID:                 "stage-silver",
		ClubProgramID:      program.ID,
		Name:               "Silver",
		StageOrder:         1,
		MinPurchaseAmount:  floatPtr(100),
		MinLtvAmount:       floatPtr(500),
		DurationMonths:     12,
		DiscountPercent:    floatPtr(10),
		PlatformDiscountID: "disc-silver",
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	f.gold = &domain.ClubStage{
		ID:                 "stage-gold",
		ClubProgramID:      program.ID,
		Name:               "Gold",
		StageOrder:         2,
		MinPurchaseAmount:  floatPtr(500),
		MinLtvAmount:       floatPtr(2000),
		DurationMonths:     12,
		DiscountPercent:    floatPtr(15),
		PlatformDiscountID: "disc-gold",
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := f.stages.Create(ctx, f.silver); err != nil {
		t.Fatalf("failed to seed silver stage: %v", err)
	}
	if err := f.stages.Create(ctx, f.gold); err != nil {
		t.Fatalf("failed to seed gold stage: %v", err)
	}

	f.provider.SeedCustomer(&domain.Customer{
		PlatformCustomerID: "c7-cust-1",
		Email:              "ava@example.com",
		FirstName:          "Ava",
		LastName:           "Reyes",
		LTV:                250,
	})

	qualifier := NewQualificationService(f.programs, f.stages, f.customers)
	f.service = NewEnrollmentService(EnrollmentServiceDeps{
		Clients:     f.clients,
		Programs:    f.programs,
		Stages:      f.stages,
		Customers:   f.customers,
		Enrollments: f.enrollments,
		Providers:   &MockProviderFactory{Provider: f.provider},
		Workflows:   f.workflows,
		Qualifier:   qualifier,
		Publisher:   f.publisher,
		Notifier:    f.notifier,
	})
	return f
}

func (f *enrollmentFixture) enrollSilver(t *testing.T) *domain.Enrollment {
	t.Helper()
	enrollment, err := f.service.Enroll(context.Background(), f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
	return enrollment
}

func TestEnroll_ExistingCustomer_Completes(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment := f.enrollSilver(t)

	if enrollment.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusActive, enrollment.Status)
	}
	if enrollment.PlatformMembershipID == "" {
		t.Error("expected platform membership ID to be set")
	}
	if !enrollment.QualifiedByPurchase {
		t.Error("expected enrollment to be qualified by purchase")
	}
	if enrollment.QualifiedByLTV {
		t.Error("expected enrollment not to be qualified by LTV")
	}
	if enrollment.ExpiresAt == nil {
		t.Error("expected a 12 month term to set expires_at")
	}

	// Verify the customer was mirrored locally
	customer, err := f.customers.GetByPlatformID(ctx, f.client.ID, "c7-cust-1")
	if err != nil || customer == nil {
		t.Fatalf("expected mirrored customer, got %v (err %v)", customer, err)
	}
	if customer.Email != "ava@example.com" {
		t.Errorf("expected mirrored email ava@example.com, got %s", customer.Email)
	}

	// Verify the workflow ran to completion
	workflow, err := f.workflows.GetByEnrollmentID(ctx, enrollment.ID)
	if err != nil {
		t.Fatalf("failed to load workflow: %v", err)
	}
	if workflow.State != sync.StateCompleted {
		t.Errorf("expected workflow state %s, got %s", sync.StateCompleted, workflow.State)
	}
	if workflow.PlatformCustomerID != "c7-cust-1" {
		t.Errorf("expected workflow platform customer c7-cust-1, got %s", workflow.PlatformCustomerID)
	}
	if workflow.PlatformMembershipID != enrollment.PlatformMembershipID {
		t.Error("expected workflow and enrollment to agree on the platform membership")
	}

	// Verify the platform membership exists
	membership := f.provider.MembershipFor("c7-cust-1")
	if membership == nil {
		t.Fatal("expected a platform membership")
	}
	if membership.ID != enrollment.PlatformMembershipID {
		t.Error("expected enrollment to record the platform membership ID")
	}

	// Verify the platform club was created and remembered on the program
	program, err := f.programs.GetByClientID(ctx, f.client.ID)
	if err != nil || program == nil {
		t.Fatalf("failed to load program: %v", err)
	}
	if program.PlatformClubID == "" {
		t.Error("expected platform club ID to be recorded on the program")
	}
	if membership.ClubID != program.PlatformClubID {
		t.Error("expected membership to live in the program's platform club")
	}

	// Verify the stage discount was attached
	if !f.provider.DiscountAttached("disc-silver", "c7-cust-1") {
		t.Error("expected customer to be attached to the silver discount")
	}

	// Verify the enrollment event and welcome notification went out
	published := f.publisher.EventsFor(dto.TopicMemberEnrolled)
	if len(published) != 1 {
		t.Fatalf("expected 1 enrollment event, got %d", len(published))
	}
	enrolled, ok := published[0].(*dto.MemberEnrolledEvent)
	if !ok {
		t.Fatalf("expected MemberEnrolledEvent, got %T", published[0])
	}
	if enrolled.EnrollmentID != enrollment.ID || enrolled.StageName != "Silver" {
		t.Errorf("unexpected event payload: %+v", enrolled)
	}
	kinds := f.notifier.KindsSent()
	if len(kinds) != 1 || kinds[0] != notify.KindEnrollmentWelcome {
		t.Errorf("expected a welcome notification, got %v", kinds)
	}
}

func TestEnroll_NewCustomer_CreatedWithAddress(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	enrollment, err := f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:    f.silver.ID,
		Email:          "new.member@example.com",
		FirstName:      "Jo",
		LastName:       "March",
		PurchaseAmount: floatPtr(120),
		Address: &dto.Address{
			Address1:   "12 Vineyard Rd",
			City:       "Healdsburg",
			State:      "CA",
			Zip:        "95448",
			CountryISO: "US",
		},
	})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
	if enrollment.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusActive, enrollment.Status)
	}

	// Verify the platform customer was created with its address
	created, err := f.provider.FindCustomerByEmail(ctx, "new.member@example.com")
	if err != nil || created == nil {
		t.Fatalf("expected platform customer to be created, got %v (err %v)", created, err)
	}
	addresses, err := f.provider.ListCustomerAddresses(ctx, created.PlatformCustomerID)
	if err != nil {
		t.Fatalf("failed to list addresses: %v", err)
	}
	if len(addresses) != 1 || addresses[0].City != "Healdsburg" {
		t.Errorf("expected one Healdsburg address, got %v", addresses)
	}
	if !addresses[0].IsDefault {
		t.Error("expected the enrollment address to be the default")
	}
}

func TestEnroll_UnknownCustomerWithoutAddress_Fails(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.service.Enroll(context.Background(), f.client.ID, &dto.EnrollRequest{
		ClubStageID:    f.silver.ID,
		Email:          "stranger@example.com",
		PurchaseAmount: floatPtr(120),
	})
	if !errors.Is(err, ErrAddressRequired) {
		t.Errorf("expected ErrAddressRequired, got %v", err)
	}

	// Verify nothing was written
	_, total, _ := f.enrollments.ListByClient(context.Background(), f.client.ID, 1, 10, "")
	if total != 0 {
		t.Errorf("expected no enrollment rows, got %d", total)
	}
}

func TestEnroll_OpenEnrollmentExists_Fails(t *testing.T) {
	f := newEnrollmentFixture(t)

	f.enrollSilver(t)
	_, err := f.service.Enroll(context.Background(), f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	if !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("expected ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEnroll_BelowThresholds_Fails(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.service.Enroll(context.Background(), f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(40),
	})
	if !errors.Is(err, ErrNotQualified) {
		t.Errorf("expected ErrNotQualified, got %v", err)
	}

	_, total, _ := f.enrollments.ListByClient(context.Background(), f.client.ID, 1, 10, "")
	if total != 0 {
		t.Errorf("expected no enrollment rows, got %d", total)
	}
}

func TestEnroll_SkipQualification_BypassesThresholds(t *testing.T) {
	f := newEnrollmentFixture(t)

	enrollment, err := f.service.Enroll(context.Background(), f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(40),
		SkipQualification:  true,
	})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
	if enrollment.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusActive, enrollment.Status)
	}
	// The flags still record that no threshold was met
	if enrollment.QualifiedByPurchase || enrollment.QualifiedByLTV {
		t.Error("expected qualification flags to stay false on a skipped gate")
	}
}

func TestEnroll_ShopifyClient_NotSupported(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	shopify := &domain.Client{
		ID:            "client-shp",
		CRMType:       domain.CRMTypeShopify,
		TenantShop:    "ridge.myshopify.com",
		AccessToken:   "tok-2",
		SetupComplete: true,
		IsActive:      true,
	}
	if err := f.clients.Create(ctx, shopify); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}

	_, err := f.service.Enroll(ctx, shopify.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "shp-cust-1",
	})
	if !errors.Is(err, crm.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}

	_, total, _ := f.enrollments.ListByClient(ctx, shopify.ID, 1, 10, "")
	if total != 0 {
		t.Errorf("expected no enrollment rows, got %d", total)
	}
}

func TestEnroll_MembershipFailure_LeavesWorkflowOpen(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.provider.MembershipErr = crm.ErrRateLimited
	_, err := f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	if !errors.Is(err, ErrSyncIncomplete) {
		t.Fatalf("expected ErrSyncIncomplete, got %v", err)
	}

	// The local enrollment exists and is still pending
	rows, total, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")
	if total != 1 {
		t.Fatalf("expected 1 enrollment row, got %d", total)
	}
	if rows[0].Status != domain.EnrollmentStatusPending {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusPending, rows[0].Status)
	}

	// The workflow holds its state with one failure recorded
	workflow, err := f.workflows.GetByEnrollmentID(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("failed to load workflow: %v", err)
	}
	if workflow.State != sync.StateCustomerSynced {
		t.Errorf("expected workflow state %s, got %s", sync.StateCustomerSynced, workflow.State)
	}
	if workflow.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", workflow.RetryCount)
	}

	// No enrollment event or welcome goes out for an incomplete sync
	if events := f.publisher.EventsFor(dto.TopicMemberEnrolled); len(events) != 0 {
		t.Errorf("expected no enrollment events, got %d", len(events))
	}
	if sent := f.notifier.KindsSent(); len(sent) != 0 {
		t.Errorf("expected no notifications, got %v", sent)
	}

	// Once the platform recovers, a resume pass completes the enrollment
	f.provider.MembershipErr = nil
	report, err := f.service.ResumePending(ctx, 0)
	if err != nil {
		t.Fatalf("resume pass failed: %v", err)
	}
	if report.Scanned != 1 || report.Completed != 1 {
		t.Errorf("expected 1 scanned / 1 completed, got %+v", report)
	}

	resumed, _ := f.enrollments.GetByID(ctx, rows[0].ID)
	if resumed.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s after resume, got %s", domain.EnrollmentStatusActive, resumed.Status)
	}
	workflow, _ = f.workflows.GetByEnrollmentID(ctx, resumed.ID)
	if workflow.State != sync.StateCompleted {
		t.Errorf("expected workflow state %s, got %s", sync.StateCompleted, workflow.State)
	}
	if len(f.publisher.EventsFor(dto.TopicMemberEnrolled)) != 1 {
		t.Error("expected the enrollment event after the resume pass")
	}
}

func TestResumePending_GivesUpAfterRetryCap(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.provider.MembershipErr = errors.New("platform outage")
	_, err := f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	if !errors.Is(err, ErrSyncIncomplete) {
		t.Fatalf("expected ErrSyncIncomplete, got %v", err)
	}

	// Each failing pass bumps the retry count; the fifth failure abandons
	var lastReport *SyncReport
	for i := 0; i < 4; i++ {
		lastReport, err = f.service.ResumePending(ctx, 0)
		if err != nil {
			t.Fatalf("resume pass %d failed: %v", i, err)
		}
	}
	if lastReport.Abandoned != 1 {
		t.Errorf("expected the final pass to abandon the workflow, got %+v", lastReport)
	}

	rows, _, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")
	workflow, werr := f.workflows.GetByEnrollmentID(ctx, rows[0].ID)
	if werr != nil {
		t.Fatalf("failed to load workflow: %v", werr)
	}
	if workflow.State != sync.StateFailed {
		t.Errorf("expected workflow state %s, got %s", sync.StateFailed, workflow.State)
	}

	// The membership never existed, so the local enrollment is cancelled
	if rows[0].Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, rows[0].Status)
	}

	// A later pass has nothing left to scan
	report, err := f.service.ResumePending(ctx, 0)
	if err != nil {
		t.Fatalf("resume pass failed: %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("expected nothing to scan, got %+v", report)
	}
}

func TestEnroll_UnsupportedStep_AbandonsImmediately(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.provider.MembershipErr = crm.ErrNotImplemented
	_, err := f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	if !errors.Is(err, ErrSyncIncomplete) {
		t.Fatalf("expected ErrSyncIncomplete, got %v", err)
	}

	// Retrying a step the platform will never accept is pointless
	rows, _, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")
	workflow, werr := f.workflows.GetByEnrollmentID(ctx, rows[0].ID)
	if werr != nil {
		t.Fatalf("failed to load workflow: %v", werr)
	}
	if workflow.State != sync.StateFailed {
		t.Errorf("expected workflow state %s, got %s", sync.StateFailed, workflow.State)
	}
	if rows[0].Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, rows[0].Status)
	}
}

func TestUpgrade_ReplacesPlatformMembership(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	original := f.enrollSilver(t)
	oldMembershipID := original.PlatformMembershipID

	upgraded, err := f.service.Upgrade(ctx, f.client.ID, original.ID, &dto.UpgradeRequest{
		TargetStageID:  f.gold.ID,
		PurchaseAmount: floatPtr(600),
	})
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}

	// The old platform membership is cancelled and a new one exists
	old, ok := f.provider.Memberships[oldMembershipID]
	if !ok {
		t.Fatal("expected the original membership to still be recorded")
	}
	if old.Status != "Cancelled" {
		t.Errorf("expected old membership to be Cancelled, got %s", old.Status)
	}
	current := f.provider.MembershipFor("c7-cust-1")
	if current == nil {
		t.Fatal("expected an open platform membership")
	}
	if current.ID == oldMembershipID {
		t.Error("expected a new platform membership, got the old one")
	}
	if upgraded.PlatformMembershipID != current.ID {
		t.Error("expected upgraded enrollment to record the new membership")
	}

	// The local rows supersede: old cancelled, new active at Gold
	closed, _ := f.enrollments.GetByID(ctx, original.ID)
	if closed.Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected original enrollment to be cancelled, got %s", closed.Status)
	}
	if upgraded.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected upgraded enrollment to be active, got %s", upgraded.Status)
	}
	if upgraded.ClubStageID != f.gold.ID {
		t.Errorf("expected upgraded enrollment at %s, got %s", f.gold.ID, upgraded.ClubStageID)
	}

	// The stage discount moved with the member
	if f.provider.DiscountAttached("disc-silver", "c7-cust-1") {
		t.Error("expected customer to be detached from the silver discount")
	}
	if !f.provider.DiscountAttached("disc-gold", "c7-cust-1") {
		t.Error("expected customer to be attached to the gold discount")
	}

	// The change event and upgrade notification went out
	changes := f.publisher.EventsFor(dto.TopicMembershipChanged)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change event, got %d", len(changes))
	}
	change, ok := changes[0].(*dto.MembershipChangedEvent)
	if !ok {
		t.Fatalf("expected MembershipChangedEvent, got %T", changes[0])
	}
	if change.Change != dto.MembershipChangeUpgraded {
		t.Errorf("expected change %s, got %s", dto.MembershipChangeUpgraded, change.Change)
	}
	if change.FromStageID != f.silver.ID || change.ToStageID != f.gold.ID {
		t.Errorf("unexpected stage movement: %+v", change)
	}
	kinds := f.notifier.KindsSent()
	if len(kinds) != 2 || kinds[1] != notify.KindMembershipUpgraded {
		t.Errorf("expected welcome then upgrade notifications, got %v", kinds)
	}
}

func TestUpgrade_SameStage_Rejected(t *testing.T) {
	f := newEnrollmentFixture(t)

	original := f.enrollSilver(t)
	_, err := f.service.Upgrade(context.Background(), f.client.ID, original.ID, &dto.UpgradeRequest{
		TargetStageID:  f.silver.ID,
		PurchaseAmount: floatPtr(600),
	})
	if !errors.Is(err, ErrNotAnUpgrade) {
		t.Errorf("expected ErrNotAnUpgrade, got %v", err)
	}
}

func TestUpgrade_BelowTargetThresholds_Rejected(t *testing.T) {
	f := newEnrollmentFixture(t)

	original := f.enrollSilver(t)
	_, err := f.service.Upgrade(context.Background(), f.client.ID, original.ID, &dto.UpgradeRequest{
		TargetStageID:  f.gold.ID,
		PurchaseAmount: floatPtr(150),
	})
	if !errors.Is(err, ErrNotQualified) {
		t.Errorf("expected ErrNotQualified, got %v", err)
	}
}

func TestUpgrade_Forced_BypassesQualification(t *testing.T) {
	f := newEnrollmentFixture(t)

	original := f.enrollSilver(t)
	upgraded, err := f.service.Upgrade(context.Background(), f.client.ID, original.ID, &dto.UpgradeRequest{
		TargetStageID:  f.gold.ID,
		PurchaseAmount: floatPtr(150),
		Force:          true,
	})
	if err != nil {
		t.Fatalf("forced upgrade failed: %v", err)
	}
	if upgraded.ClubStageID != f.gold.ID {
		t.Errorf("expected upgraded enrollment at %s, got %s", f.gold.ID, upgraded.ClubStageID)
	}
}

func TestUpgrade_PendingEnrollment_Rejected(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	// A sync failure leaves the enrollment pending
	f.provider.MembershipErr = errors.New("platform outage")
	_, _ = f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	rows, _, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")

	_, err := f.service.Upgrade(ctx, f.client.ID, rows[0].ID, &dto.UpgradeRequest{
		TargetStageID:  f.gold.ID,
		PurchaseAmount: floatPtr(600),
	})
	if !errors.Is(err, ErrEnrollmentSyncing) {
		t.Errorf("expected ErrEnrollmentSyncing, got %v", err)
	}
}

func TestUpgrade_WrongClient_NotFound(t *testing.T) {
	f := newEnrollmentFixture(t)

	original := f.enrollSilver(t)
	_, err := f.service.Upgrade(context.Background(), "client-other", original.ID, &dto.UpgradeRequest{
		TargetStageID: f.gold.ID,
	})
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Errorf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestCancel_EndsPlatformMembership(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	original := f.enrollSilver(t)

	cancelled, err := f.service.Cancel(ctx, f.client.ID, original.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}

	// Platform side followed
	if f.provider.MembershipFor("c7-cust-1") != nil {
		t.Error("expected no open platform membership after cancel")
	}
	if f.provider.DiscountAttached("disc-silver", "c7-cust-1") {
		t.Error("expected customer to be detached from the silver discount")
	}

	// The change event and notification went out
	changes := f.publisher.EventsFor(dto.TopicMembershipChanged)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change event, got %d", len(changes))
	}
	change := changes[0].(*dto.MembershipChangedEvent)
	if change.Change != dto.MembershipChangeCancelled {
		t.Errorf("expected change %s, got %s", dto.MembershipChangeCancelled, change.Change)
	}
	kinds := f.notifier.KindsSent()
	if len(kinds) != 2 || kinds[1] != notify.KindMembershipCancelled {
		t.Errorf("expected welcome then cancellation notifications, got %v", kinds)
	}

	// Cancelling again is a no-op, not an error
	again, err := f.service.Cancel(ctx, f.client.ID, original.ID)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if again.Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, again.Status)
	}
	if len(f.publisher.EventsFor(dto.TopicMembershipChanged)) != 1 {
		t.Error("expected no duplicate change event on a repeated cancel")
	}
}

func TestCancel_PendingEnrollment_ClosesWorkflow(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.provider.MembershipErr = errors.New("platform outage")
	_, _ = f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	rows, _, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")

	f.provider.MembershipErr = nil
	cancelled, err := f.service.Cancel(ctx, f.client.ID, rows[0].ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, cancelled.Status)
	}

	// The open workflow was closed, so a resume pass finds nothing
	workflow, werr := f.workflows.GetByEnrollmentID(ctx, cancelled.ID)
	if werr != nil {
		t.Fatalf("failed to load workflow: %v", werr)
	}
	if workflow.State != sync.StateCancelled {
		t.Errorf("expected workflow state %s, got %s", sync.StateCancelled, workflow.State)
	}
	report, err := f.service.ResumePending(ctx, 0)
	if err != nil {
		t.Fatalf("resume pass failed: %v", err)
	}
	if report.Scanned != 0 {
		t.Errorf("expected nothing to scan, got %+v", report)
	}
}

func TestHandleOrderPlaced_UpgradesActiveMember(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.enrollSilver(t)

	// A $600 order clears the Gold purchase threshold
	if err := f.service.HandleOrderPlaced(ctx, f.client, "c7-cust-1", 600); err != nil {
		t.Fatalf("order handling failed: %v", err)
	}

	customer, _ := f.customers.GetByPlatformID(ctx, f.client.ID, "c7-cust-1")
	open, _ := f.enrollments.GetOpenByCustomer(ctx, f.client.ID, customer.ID)
	if open == nil {
		t.Fatal("expected an open enrollment")
	}
	if open.ClubStageID != f.gold.ID {
		t.Errorf("expected member at %s after the order, got %s", f.gold.ID, open.ClubStageID)
	}
	if open.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusActive, open.Status)
	}
}

func TestHandleOrderPlaced_BelowNextTier_NoChange(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	original := f.enrollSilver(t)

	// $150 only re-clears Silver, the member's current tier
	if err := f.service.HandleOrderPlaced(ctx, f.client, "c7-cust-1", 150); err != nil {
		t.Fatalf("order handling failed: %v", err)
	}

	customer, _ := f.customers.GetByPlatformID(ctx, f.client.ID, "c7-cust-1")
	open, _ := f.enrollments.GetOpenByCustomer(ctx, f.client.ID, customer.ID)
	if open.ID != original.ID {
		t.Error("expected the original enrollment to remain open")
	}
	if open.ClubStageID != f.silver.ID {
		t.Errorf("expected member to stay at %s, got %s", f.silver.ID, open.ClubStageID)
	}
}

func TestHandleOrderPlaced_NonMember_NeverEnrolls(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	// Mirror exists but the customer never joined a club
	mirror := &domain.Customer{
		ClientID:           f.client.ID,
		PlatformCustomerID: "c7-cust-2",
		Email:              "guest@example.com",
		LTV:                3000,
	}
	mirror.PrepareForUpsert()
	if err := f.customers.Upsert(ctx, mirror); err != nil {
		t.Fatalf("failed to seed mirror: %v", err)
	}

	if err := f.service.HandleOrderPlaced(ctx, f.client, "c7-cust-2", 900); err != nil {
		t.Fatalf("order handling failed: %v", err)
	}
	_, total, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")
	if total != 0 {
		t.Errorf("expected no enrollment rows, got %d", total)
	}

	// A customer the app has never seen is ignored entirely
	if err := f.service.HandleOrderPlaced(ctx, f.client, "c7-cust-unknown", 900); err != nil {
		t.Fatalf("order handling failed: %v", err)
	}
}

func TestResumePending_UninstalledClient_Abandons(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	f.provider.MembershipErr = errors.New("platform outage")
	_, _ = f.service.Enroll(ctx, f.client.ID, &dto.EnrollRequest{
		ClubStageID:        f.silver.ID,
		PlatformCustomerID: "c7-cust-1",
		PurchaseAmount:     floatPtr(150),
	})
	f.provider.MembershipErr = nil

	// The winery uninstalls before the sync recovers
	f.client.Deactivate()
	if err := f.clients.Update(ctx, f.client); err != nil {
		t.Fatalf("failed to deactivate client: %v", err)
	}

	report, err := f.service.ResumePending(ctx, 0)
	if err != nil {
		t.Fatalf("resume pass failed: %v", err)
	}
	if report.Scanned != 1 || report.Abandoned != 1 {
		t.Errorf("expected 1 scanned / 1 abandoned, got %+v", report)
	}

	rows, _, _ := f.enrollments.ListByClient(ctx, f.client.ID, 1, 10, "")
	if rows[0].Status != domain.EnrollmentStatusCancelled {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusCancelled, rows[0].Status)
	}
}

func TestEnroll_NotificationFailure_StillCompletes(t *testing.T) {
	f := newEnrollmentFixture(t)

	f.notifier.FailureError = errors.New("communications service unavailable")
	enrollment := f.enrollSilver(t)

	if enrollment.Status != domain.EnrollmentStatusActive {
		t.Errorf("expected status %s, got %s", domain.EnrollmentStatusActive, enrollment.Status)
	}
	// The event still goes out even when the welcome message fails
	if len(f.publisher.EventsFor(dto.TopicMemberEnrolled)) != 1 {
		t.Error("expected the enrollment event despite the notification failure")
	}
}

func TestMockCRMProvider_MembershipIdempotency(t *testing.T) {
	provider := NewMockCRMProvider()
	ctx := context.Background()

	first, err := provider.CreateClubMembership(ctx, crm.MembershipInput{
		ClubID:             "club-1",
		PlatformCustomerID: "cust-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Creating again for the same (club, customer) returns the same row
	second, err := provider.CreateClubMembership(ctx, crm.MembershipInput{
		ClubID:             "club-1",
		PlatformCustomerID: "cust-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected idempotent create, got %s then %s", first.ID, second.ID)
	}

	// After a cancel a fresh membership is created
	if err := provider.CancelClubMembership(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, err := provider.CreateClubMembership(ctx, crm.MembershipInput{
		ClubID:             "club-1",
		PlatformCustomerID: "cust-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.ID == first.ID {
		t.Error("expected a new membership after cancellation")
	}
}

func TestMockCRMProvider_FindCustomerByEmail(t *testing.T) {
	provider := NewMockCRMProvider()
	ctx := context.Background()

	provider.SeedCustomer(&domain.Customer{
		PlatformCustomerID: "cust-1",
		Email:              "Member@Example.com",
	})

	// Lookup is case-insensitive
	found, err := provider.FindCustomerByEmail(ctx, "member@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.PlatformCustomerID != "cust-1" {
		t.Errorf("expected cust-1, got %v", found)
	}

	// A miss is nil, nil
	missing, err := provider.FindCustomerByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil on a miss, got %v", missing)
	}
}

func TestMockEventPublisher_RecordsByTopic(t *testing.T) {
	publisher := NewMockEventPublisher()
	ctx := context.Background()

	event := &dto.MemberEnrolledEvent{EventType: dto.TopicMemberEnrolled, CustomerID: "cust-1"}
	if err := publisher.Publish(ctx, dto.TopicMemberEnrolled, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	publisher.PublishAsync(ctx, dto.TopicMembershipChanged, &dto.MembershipChangedEvent{CustomerID: "cust-1"})

	if len(publisher.EventsFor(dto.TopicMemberEnrolled)) != 1 {
		t.Error("expected 1 enrollment event")
	}
	if len(publisher.EventsFor(dto.TopicMembershipChanged)) != 1 {
		t.Error("expected 1 change event")
	}

	publisher.FailureError = errors.New("brokers unreachable")
	if err := publisher.Publish(ctx, dto.TopicMemberEnrolled, event); err == nil {
		t.Error("expected publish to fail")
	}
	// Async publishes still record so completion paths stay observable
	publisher.PublishAsync(ctx, dto.TopicMemberEnrolled, event)
	if len(publisher.EventsFor(dto.TopicMemberEnrolled)) != 2 {
		t.Error("expected the async event to be recorded")
	}
}
