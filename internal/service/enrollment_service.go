package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/notify"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/sync"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("customer already holds an open enrollment")
	ErrNotQualified       = errors.New("customer does not qualify for this tier")
	ErrNoProgram          = errors.New("client has no club program")
	ErrAddressRequired    = errors.New("an address is required to create a platform customer")
	ErrNotAnUpgrade       = errors.New("target stage is not a higher tier")
	ErrEnrollmentClosed   = errors.New("enrollment is already finished")
	ErrEnrollmentSyncing  = errors.New("enrollment has not finished syncing")
	// ErrSyncIncomplete means the local enrollment exists but a platform
	// write failed; the resume pass finishes it later.
	ErrSyncIncomplete = errors.New("platform sync incomplete")
)

const (
	// maxWorkflowRetries bounds resume attempts before a workflow is
	// abandoned as failed.
	maxWorkflowRetries = 5
	defaultSyncBatch   = 50
)

// SyncReport summarizes one resume pass over open workflows
type SyncReport struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Abandoned int `json:"abandoned"`
}

// EnrollmentService defines the interface for club enrollment
// orchestration across the local store and the commerce platform
type EnrollmentService interface {
	// Enroll places a customer into a club stage: the platform customer
	// is found or created, the qualification gate runs, and a sync
	// workflow drives the platform membership into existence
	Enroll(ctx context.Context, clientID string, req *dto.EnrollRequest) (*domain.Enrollment, error)
	// Upgrade moves an active enrollment to a higher tier, replacing the
	// platform membership and superseding the local row
	Upgrade(ctx context.Context, clientID, enrollmentID string, req *dto.UpgradeRequest) (*domain.Enrollment, error)
	// Cancel ends a membership on the platform and locally
	Cancel(ctx context.Context, clientID, enrollmentID string) (*domain.Enrollment, error)
	// GetByID retrieves one enrollment within the client's scope
	GetByID(ctx context.Context, clientID, enrollmentID string) (*domain.Enrollment, error)
	// List retrieves a page of the client's enrollments, optionally
	// filtered by status
	List(ctx context.Context, clientID string, page, limit int, status string) ([]*domain.Enrollment, int, error)
	// HandleOrderPlaced reacts to an order webhook: the order total and
	// the refreshed LTV run through qualification, and an active member
	// who now clears a higher tier is upgraded automatically
	HandleOrderPlaced(ctx context.Context, client *domain.Client, platformCustomerID string, orderTotal float64) error
	// ResumePending re-drives open sync workflows, called from the sync
	// endpoint on a schedule
	ResumePending(ctx context.Context, limit int) (*SyncReport, error)
}

// EnrollmentServiceDeps bundles the collaborators enrollment
// orchestration writes through
type EnrollmentServiceDeps struct {
	Clients     repository.ClientRepository
	Programs    repository.ClubProgramRepository
	Stages      repository.ClubStageRepository
	Customers   repository.CustomerRepository
	Enrollments repository.EnrollmentRepository
	Providers   ProviderFactory
	Workflows   *sync.StateMachine
	Qualifier   QualificationService
	Publisher   EventPublisher
	Notifier    notify.Notifier
}

// enrollmentService implements EnrollmentService
type enrollmentService struct {
	clients     repository.ClientRepository
	programs    repository.ClubProgramRepository
	stages      repository.ClubStageRepository
	customers   repository.CustomerRepository
	enrollments repository.EnrollmentRepository
	providers   ProviderFactory
	workflows   *sync.StateMachine
	qualifier   QualificationService
	publisher   EventPublisher
	notifier    notify.Notifier
}

// NewEnrollmentService creates a new EnrollmentService
func NewEnrollmentService(deps EnrollmentServiceDeps) EnrollmentService {
	return &enrollmentService{
		clients:     deps.Clients,
		programs:    deps.Programs,
		stages:      deps.Stages,
		customers:   deps.Customers,
		enrollments: deps.Enrollments,
		providers:   deps.Providers,
		workflows:   deps.Workflows,
		qualifier:   deps.Qualifier,
		publisher:   deps.Publisher,
		notifier:    deps.Notifier,
	}
}

// Enroll places a customer into a club stage
func (s *enrollmentService) Enroll(ctx context.Context, clientID string, req *dto.EnrollRequest) (*domain.Enrollment, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	// Shopify has no club API surface yet; fail before any local rows
	// exist rather than stranding a workflow.
	if client.CRMType == domain.CRMTypeShopify {
		return nil, fmt.Errorf("club enrollment on %s: %w", client.CRMType, crm.ErrNotImplemented)
	}

	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return nil, ErrNoProgram
	}

	stage, err := s.stages.GetByID(ctx, req.ClubStageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club stage: %w", err)
	}
	if stage == nil || !stage.IsActive || stage.ClubProgramID != program.ID {
		return nil, ErrStageNotFound
	}

	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return nil, err
	}

	platformCustomer, err := s.resolvePlatformCustomer(ctx, provider, req)
	if err != nil {
		return nil, err
	}

	platformCustomer.ClientID = client.ID
	platformCustomer.PrepareForUpsert()
	if err := s.customers.Upsert(ctx, platformCustomer); err != nil {
		return nil, fmt.Errorf("failed to mirror customer: %w", err)
	}
	customer, err := s.customers.GetByPlatformID(ctx, client.ID, platformCustomer.PlatformCustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirrored customer: %w", err)
	}
	if customer == nil {
		return nil, errors.New("customer mirror missing after upsert")
	}

	open, err := s.enrollments.GetOpenByCustomer(ctx, client.ID, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open enrollment: %w", err)
	}
	if open != nil {
		return nil, ErrAlreadyEnrolled
	}

	ltv := customer.LTV
	byPurchase, byLTV := stage.SatisfiedBy(req.PurchaseAmount, &ltv)
	if !req.SkipQualification && !byPurchase && !byLTV {
		return nil, ErrNotQualified
	}

	enrollment, err := domain.NewEnrollment(client.ID, customer.ID, stage.ID)
	if err != nil {
		return nil, err
	}
	enrollment.QualifiedByPurchase = byPurchase
	enrollment.QualifiedByLTV = byLTV
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	data := map[string]any{"email": customer.Email}
	if req.PurchaseAmount != nil {
		data["purchase_amount"] = *req.PurchaseAmount
	}
	workflow, err := s.workflows.Begin(ctx, enrollment.ID, client.ID, customer.ID, stage.ID, data)
	if err != nil {
		return nil, fmt.Errorf("failed to start enrollment workflow: %w", err)
	}

	logger.InfoCtx(ctx, "enrollment started",
		zap.String("client_id", client.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("stage_id", stage.ID))

	if err := s.runWorkflow(ctx, client, provider, workflow.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncIncomplete, err)
	}

	final, err := s.enrollments.GetByID(ctx, enrollment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload enrollment: %w", err)
	}
	if final == nil {
		return nil, ErrEnrollmentNotFound
	}
	return final, nil
}

// resolvePlatformCustomer finds or creates the platform-side customer
// the enrollment targets
func (s *enrollmentService) resolvePlatformCustomer(ctx context.Context, provider crm.Provider, req *dto.EnrollRequest) (*domain.Customer, error) {
	if req.PlatformCustomerID != "" {
		customer, err := provider.GetCustomer(ctx, req.PlatformCustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch platform customer: %w", err)
		}
		return customer, nil
	}

	if req.Email == "" {
		return nil, errors.New("platform_customer_id or email is required")
	}
	existing, err := provider.FindCustomerByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer by email: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if req.Address == nil {
		return nil, ErrAddressRequired
	}
	created, err := provider.CreateCustomerWithAddress(ctx, crm.CustomerInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, req.Address.ToDomain())
	if err != nil {
		return nil, fmt.Errorf("failed to create platform customer: %w", err)
	}
	return created, nil
}

// runWorkflow drives an open workflow forward until it completes or a
// step fails. Platform writes are idempotent, so re-running a step
// after a crash converges on the same state.
func (s *enrollmentService) runWorkflow(ctx context.Context, client *domain.Client, provider crm.Provider, workflowID string) error {
	workflow, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	for !workflow.State.IsTerminal() {
		next, err := s.runStep(ctx, client, provider, workflow)
		if err != nil {
			s.noteStepFailure(ctx, workflow, err)
			return err
		}
		workflow = next
	}
	return nil
}

// runStep executes the platform work owed in the workflow's current
// state and advances it
func (s *enrollmentService) runStep(ctx context.Context, client *domain.Client, provider crm.Provider, workflow *sync.EnrollmentWorkflow) (*sync.EnrollmentWorkflow, error) {
	switch workflow.State {
	case sync.StatePending:
		customer, err := s.customers.GetByID(ctx, workflow.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load customer mirror: %w", err)
		}
		if customer == nil || customer.PlatformCustomerID == "" {
			return nil, errors.New("customer mirror has no platform identity")
		}
		return s.workflows.MarkCustomerSynced(ctx, workflow.ID, customer.PlatformCustomerID)

	case sync.StateCustomerSynced:
		clubID, err := s.ensurePlatformClub(ctx, client, provider)
		if err != nil {
			return nil, err
		}
		stage, err := s.stages.GetByID(ctx, workflow.ClubStageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load club stage: %w", err)
		}
		if stage == nil {
			return nil, ErrStageNotFound
		}
		membership, err := provider.CreateClubMembership(ctx, crm.MembershipInput{
			ClubID:             clubID,
			PlatformCustomerID: workflow.PlatformCustomerID,
			StageName:          stage.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create platform membership: %w", err)
		}
		return s.workflows.MarkMembershipCreated(ctx, workflow.ID, clubID, membership.ID)

	case sync.StateMembershipCreated:
		stage, err := s.stages.GetByID(ctx, workflow.ClubStageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load club stage: %w", err)
		}
		if stage != nil && stage.HasDiscount() && stage.PlatformDiscountID != "" {
			if err := provider.AddCustomerToDiscount(ctx, stage.PlatformDiscountID, workflow.PlatformCustomerID); err != nil && !errors.Is(err, crm.ErrNotImplemented) {
				return nil, fmt.Errorf("failed to attach stage discount: %w", err)
			}
		}

		enrollment, err := s.enrollments.GetByID(ctx, workflow.EnrollmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load enrollment: %w", err)
		}
		if enrollment == nil {
			return nil, ErrEnrollmentNotFound
		}
		if enrollment.Status == domain.EnrollmentStatusPending {
			duration := 0
			if stage != nil {
				duration = stage.DurationMonths
			}
			if err := enrollment.Activate(workflow.PlatformMembershipID, duration); err != nil {
				return nil, err
			}
			if err := s.enrollments.Update(ctx, enrollment); err != nil {
				return nil, fmt.Errorf("failed to activate enrollment: %w", err)
			}
		}

		completed, err := s.workflows.MarkCompleted(ctx, workflow.ID)
		if err != nil {
			return nil, err
		}
		s.announceEnrollment(ctx, client, enrollment, stage)
		return completed, nil

	default:
		return nil, fmt.Errorf("%w: workflow %s is in state %s", sync.ErrInvalidStateTransition, workflow.ID, workflow.State)
	}
}

// ensurePlatformClub creates the platform club on first use and
// remembers its ID on the program row
func (s *enrollmentService) ensurePlatformClub(ctx context.Context, client *domain.Client, provider crm.Provider) (string, error) {
	program, err := s.programs.GetByClientID(ctx, client.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return "", ErrNoProgram
	}
	if program.PlatformClubID != "" {
		return program.PlatformClubID, nil
	}

	stages, err := s.stages.ListByProgram(ctx, program.ID, true)
	if err != nil {
		return "", fmt.Errorf("failed to load club stages: %w", err)
	}
	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.Name)
	}

	club, err := provider.UpsertClub(ctx, crm.ClubInput{
		Title:      program.Name,
		StageNames: names,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert platform club: %w", err)
	}

	program.PlatformClubID = club.ID
	program.UpdatedAt = time.Now()
	if err := s.programs.Update(ctx, program); err != nil {
		return "", fmt.Errorf("failed to record platform club: %w", err)
	}
	return club.ID, nil
}

// announceEnrollment publishes the enrollment event and sends the
// welcome message. Neither failure unwinds the enrollment.
func (s *enrollmentService) announceEnrollment(ctx context.Context, client *domain.Client, enrollment *domain.Enrollment, stage *domain.ClubStage) {
	event := &dto.MemberEnrolledEvent{
		EventType:           dto.TopicMemberEnrolled,
		ClientID:            client.ID,
		CustomerID:          enrollment.CustomerID,
		EnrollmentID:        enrollment.ID,
		ClubStageID:         enrollment.ClubStageID,
		QualifiedByPurchase: enrollment.QualifiedByPurchase,
		QualifiedByLTV:      enrollment.QualifiedByLTV,
		Timestamp:           time.Now(),
	}
	if stage != nil {
		event.StageName = stage.Name
	}
	s.publisher.PublishAsync(ctx, dto.TopicMemberEnrolled, event)

	if err := s.notifier.Send(ctx, client.ID, enrollment.CustomerID, notify.KindEnrollmentWelcome); err != nil {
		logger.WarnCtx(ctx, "welcome notification failed",
			zap.String("client_id", client.ID),
			zap.String("enrollment_id", enrollment.ID),
			zap.Error(err))
	}

	logger.InfoCtx(ctx, "enrollment completed",
		zap.String("client_id", client.ID),
		zap.String("enrollment_id", enrollment.ID))
}

// noteStepFailure records a step failure on the workflow. Steps the
// platform will never accept are failed outright; everything else stays
// open for the resume pass.
func (s *enrollmentService) noteStepFailure(ctx context.Context, workflow *sync.EnrollmentWorkflow, stepErr error) {
	logger.ErrorCtx(ctx, "enrollment workflow step failed",
		zap.String("client_id", workflow.ClientID),
		zap.String("workflow_id", workflow.ID),
		zap.String("state", string(workflow.State)),
		zap.Error(stepErr))

	if errors.Is(stepErr, crm.ErrNotImplemented) {
		s.abandonWorkflow(ctx, workflow.ID, stepErr.Error())
		return
	}

	updated, err := s.workflows.RecordFailure(ctx, workflow.ID, stepErr.Error())
	if err != nil {
		logger.ErrorCtx(ctx, "failed to record workflow failure",
			zap.String("workflow_id", workflow.ID),
			zap.Error(err))
		return
	}
	if updated.RetryCount >= maxWorkflowRetries {
		s.abandonWorkflow(ctx, workflow.ID, fmt.Sprintf("gave up after %d attempts: %s", updated.RetryCount, stepErr))
	}
}

// abandonWorkflow fails the workflow and settles the local enrollment:
// cancelled when the platform membership never materialized, activated
// when it did and only a later step kept failing.
func (s *enrollmentService) abandonWorkflow(ctx context.Context, workflowID, reason string) {
	workflow, err := s.workflows.MarkFailed(ctx, workflowID, reason)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to abandon workflow",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return
	}

	enrollment, err := s.enrollments.GetByID(ctx, workflow.EnrollmentID)
	if err != nil || enrollment == nil {
		logger.WarnCtx(ctx, "abandoned workflow has no enrollment row",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return
	}
	if enrollment.Status != domain.EnrollmentStatusPending {
		return
	}

	if workflow.PlatformMembershipID != "" {
		stage, serr := s.stages.GetByID(ctx, enrollment.ClubStageID)
		duration := 0
		if serr == nil && stage != nil {
			duration = stage.DurationMonths
		}
		if aerr := enrollment.Activate(workflow.PlatformMembershipID, duration); aerr == nil {
			if uerr := s.enrollments.Update(ctx, enrollment); uerr != nil {
				logger.ErrorCtx(ctx, "failed to activate enrollment for abandoned workflow",
					zap.String("enrollment_id", enrollment.ID),
					zap.Error(uerr))
			}
		}
	} else {
		if cerr := enrollment.Cancel(); cerr == nil {
			if uerr := s.enrollments.Update(ctx, enrollment); uerr != nil {
				logger.ErrorCtx(ctx, "failed to cancel enrollment for abandoned workflow",
					zap.String("enrollment_id", enrollment.ID),
					zap.Error(uerr))
			}
		}
	}

	logger.WarnCtx(ctx, "enrollment workflow abandoned",
		zap.String("client_id", workflow.ClientID),
		zap.String("workflow_id", workflow.ID),
		zap.String("reason", reason))
}

// Upgrade moves an active enrollment to a higher tier
func (s *enrollmentService) Upgrade(ctx context.Context, clientID, enrollmentID string, req *dto.UpgradeRequest) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil || enrollment.ClientID != clientID {
		return nil, ErrEnrollmentNotFound
	}
	if enrollment.IsFinal() {
		return nil, ErrEnrollmentClosed
	}
	if enrollment.Status != domain.EnrollmentStatusActive {
		return nil, ErrEnrollmentSyncing
	}

	program, err := s.programs.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil {
		return nil, ErrNoProgram
	}

	target, err := s.stages.GetByID(ctx, req.TargetStageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target stage: %w", err)
	}
	if target == nil || !target.IsActive || target.ClubProgramID != program.ID {
		return nil, ErrStageNotFound
	}
	current, err := s.stages.GetByID(ctx, enrollment.ClubStageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current stage: %w", err)
	}
	if target.ID == enrollment.ClubStageID || (current != nil && target.StageOrder <= current.StageOrder) {
		return nil, ErrNotAnUpgrade
	}

	if !req.Force {
		ok, err := s.qualifier.QualifiesForStage(ctx, clientID, enrollment.CustomerID, target.ID, req.PurchaseAmount)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotQualified
		}
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	customer, err := s.customers.GetByID(ctx, enrollment.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer mirror: %w", err)
	}
	if customer == nil {
		return nil, errors.New("customer mirror missing")
	}
	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return nil, err
	}

	// Platform first: the old membership must be gone before the new
	// tier's can exist, because creation is idempotent on
	// (club, customer).
	if enrollment.PlatformMembershipID != "" {
		if err := provider.CancelClubMembership(ctx, enrollment.PlatformMembershipID); err != nil {
			return nil, fmt.Errorf("failed to cancel outgoing membership: %w", err)
		}
	}
	clubID, err := s.ensurePlatformClub(ctx, client, provider)
	if err != nil {
		return nil, err
	}
	membership, err := provider.CreateClubMembership(ctx, crm.MembershipInput{
		ClubID:             clubID,
		PlatformCustomerID: customer.PlatformCustomerID,
		StageName:          target.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create platform membership: %w", err)
	}

	// Move the stage discount with the member.
	if current != nil && current.HasDiscount() && current.PlatformDiscountID != "" {
		if err := provider.RemoveCustomerFromDiscount(ctx, current.PlatformDiscountID, customer.PlatformCustomerID); err != nil && !errors.Is(err, crm.ErrNotImplemented) {
			logger.WarnCtx(ctx, "failed to detach outgoing stage discount",
				zap.String("client_id", clientID),
				zap.String("stage_id", current.ID),
				zap.Error(err))
		}
	}
	if target.HasDiscount() && target.PlatformDiscountID != "" {
		if err := provider.AddCustomerToDiscount(ctx, target.PlatformDiscountID, customer.PlatformCustomerID); err != nil && !errors.Is(err, crm.ErrNotImplemented) {
			logger.WarnCtx(ctx, "failed to attach target stage discount",
				zap.String("client_id", clientID),
				zap.String("stage_id", target.ID),
				zap.Error(err))
		}
	}

	// Supersede the local row: the old enrollment closes and a new
	// active one carries the upgraded tier, preserving history.
	if err := enrollment.Cancel(); err != nil {
		return nil, err
	}
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to close outgoing enrollment: %w", err)
	}

	upgraded, err := domain.NewEnrollment(clientID, enrollment.CustomerID, target.ID)
	if err != nil {
		return nil, err
	}
	ltv := customer.LTV
	upgraded.QualifiedByPurchase, upgraded.QualifiedByLTV = target.SatisfiedBy(req.PurchaseAmount, &ltv)
	if err := upgraded.Activate(membership.ID, target.DurationMonths); err != nil {
		return nil, err
	}
	if err := s.enrollments.Create(ctx, upgraded); err != nil {
		return nil, fmt.Errorf("failed to create upgraded enrollment: %w", err)
	}

	s.publisher.PublishAsync(ctx, dto.TopicMembershipChanged, &dto.MembershipChangedEvent{
		EventType:    dto.TopicMembershipChanged,
		ClientID:     clientID,
		CustomerID:   enrollment.CustomerID,
		EnrollmentID: upgraded.ID,
		FromStageID:  enrollment.ClubStageID,
		ToStageID:    target.ID,
		Change:       dto.MembershipChangeUpgraded,
		Timestamp:    time.Now(),
	})
	if err := s.notifier.Send(ctx, clientID, enrollment.CustomerID, notify.KindMembershipUpgraded); err != nil {
		logger.WarnCtx(ctx, "upgrade notification failed",
			zap.String("client_id", clientID),
			zap.Error(err))
	}

	logger.InfoCtx(ctx, "membership upgraded",
		zap.String("client_id", clientID),
		zap.String("enrollment_id", upgraded.ID),
		zap.String("from_stage_id", enrollment.ClubStageID),
		zap.String("to_stage_id", target.ID))
	return upgraded, nil
}

// Cancel ends a membership on the platform and locally. Cancelling an
// already-cancelled enrollment is a no-op.
func (s *enrollmentService) Cancel(ctx context.Context, clientID, enrollmentID string) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil || enrollment.ClientID != clientID {
		return nil, ErrEnrollmentNotFound
	}
	if enrollment.Status == domain.EnrollmentStatusCancelled {
		return enrollment, nil
	}
	if enrollment.Status == domain.EnrollmentStatusExpired {
		return nil, ErrEnrollmentClosed
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return nil, err
	}

	if enrollment.PlatformMembershipID != "" {
		if err := provider.CancelClubMembership(ctx, enrollment.PlatformMembershipID); err != nil {
			return nil, fmt.Errorf("failed to cancel platform membership: %w", err)
		}
	}

	stage, err := s.stages.GetByID(ctx, enrollment.ClubStageID)
	if err == nil && stage != nil && stage.HasDiscount() && stage.PlatformDiscountID != "" {
		customer, cerr := s.customers.GetByID(ctx, enrollment.CustomerID)
		if cerr == nil && customer != nil {
			if derr := provider.RemoveCustomerFromDiscount(ctx, stage.PlatformDiscountID, customer.PlatformCustomerID); derr != nil && !errors.Is(derr, crm.ErrNotImplemented) {
				logger.WarnCtx(ctx, "failed to detach stage discount",
					zap.String("client_id", clientID),
					zap.String("stage_id", stage.ID),
					zap.Error(derr))
			}
		}
	}

	wasPending := enrollment.Status == domain.EnrollmentStatusPending
	if err := enrollment.Cancel(); err != nil {
		return nil, err
	}
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to update enrollment: %w", err)
	}
	if wasPending {
		s.closeOpenWorkflow(ctx, enrollment.ID)
	}

	s.publisher.PublishAsync(ctx, dto.TopicMembershipChanged, &dto.MembershipChangedEvent{
		EventType:    dto.TopicMembershipChanged,
		ClientID:     clientID,
		CustomerID:   enrollment.CustomerID,
		EnrollmentID: enrollment.ID,
		FromStageID:  enrollment.ClubStageID,
		Change:       dto.MembershipChangeCancelled,
		Timestamp:    time.Now(),
	})
	if err := s.notifier.Send(ctx, clientID, enrollment.CustomerID, notify.KindMembershipCancelled); err != nil {
		logger.WarnCtx(ctx, "cancellation notification failed",
			zap.String("client_id", clientID),
			zap.Error(err))
	}

	logger.InfoCtx(ctx, "membership cancelled",
		zap.String("client_id", clientID),
		zap.String("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// closeOpenWorkflow stops the sync workflow behind a cancelled pending
// enrollment
func (s *enrollmentService) closeOpenWorkflow(ctx context.Context, enrollmentID string) {
	workflow, err := s.workflows.GetByEnrollmentID(ctx, enrollmentID)
	if err != nil {
		if !errors.Is(err, sync.ErrWorkflowNotFound) {
			logger.WarnCtx(ctx, "failed to load workflow for cancelled enrollment",
				zap.String("enrollment_id", enrollmentID),
				zap.Error(err))
		}
		return
	}
	if workflow.State.IsTerminal() {
		return
	}
	if _, err := s.workflows.MarkCancelled(ctx, workflow.ID, "enrollment cancelled"); err != nil {
		if _, ferr := s.workflows.MarkFailed(ctx, workflow.ID, "enrollment cancelled"); ferr != nil {
			logger.WarnCtx(ctx, "failed to close workflow for cancelled enrollment",
				zap.String("enrollment_id", enrollmentID),
				zap.Error(ferr))
		}
	}
}

// GetByID retrieves one enrollment within the client's scope
func (s *enrollmentService) GetByID(ctx context.Context, clientID, enrollmentID string) (*domain.Enrollment, error) {
	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	if enrollment == nil || enrollment.ClientID != clientID {
		return nil, ErrEnrollmentNotFound
	}
	return enrollment, nil
}

// List retrieves a page of the client's enrollments
func (s *enrollmentService) List(ctx context.Context, clientID string, page, limit int, status string) ([]*domain.Enrollment, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.enrollments.ListByClient(ctx, clientID, page, limit, status)
}

// HandleOrderPlaced reacts to an order webhook. Customers without an
// open enrollment are never auto-enrolled; joining a club stays a
// consented action.
func (s *enrollmentService) HandleOrderPlaced(ctx context.Context, client *domain.Client, platformCustomerID string, orderTotal float64) error {
	customer, err := s.customers.GetByPlatformID(ctx, client.ID, platformCustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer mirror: %w", err)
	}
	if customer == nil {
		return nil
	}

	enrollment, err := s.enrollments.GetOpenByCustomer(ctx, client.ID, customer.ID)
	if err != nil {
		return fmt.Errorf("failed to check open enrollment: %w", err)
	}
	if enrollment == nil || enrollment.Status != domain.EnrollmentStatusActive {
		return nil
	}

	ltv := customer.LTV
	result, err := s.qualifier.QualifyCustomer(ctx, client.ID, &orderTotal, &ltv)
	if err != nil {
		return err
	}
	if !result.Qualified() {
		return nil
	}

	current, err := s.stages.GetByID(ctx, enrollment.ClubStageID)
	if err != nil {
		return fmt.Errorf("failed to load current stage: %w", err)
	}
	if current == nil || result.QualifyingTier.StageOrder <= current.StageOrder {
		return nil
	}

	logger.InfoCtx(ctx, "order qualifies member for higher tier",
		zap.String("client_id", client.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("target_stage_id", result.QualifyingTier.ID),
		zap.Float64("order_total", orderTotal))

	_, err = s.Upgrade(ctx, client.ID, enrollment.ID, &dto.UpgradeRequest{
		TargetStageID:  result.QualifyingTier.ID,
		PurchaseAmount: &orderTotal,
	})
	return err
}

// ResumePending re-drives open enrollment workflows, bounded by limit
func (s *enrollmentService) ResumePending(ctx context.Context, limit int) (*SyncReport, error) {
	if limit <= 0 {
		limit = defaultSyncBatch
	}
	open, err := s.workflows.OpenWorkflows(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open workflows: %w", err)
	}

	report := &SyncReport{Scanned: len(open)}
	for _, workflow := range open {
		if err := s.resumeOne(ctx, workflow); err != nil {
			refreshed, gerr := s.workflows.GetWorkflow(ctx, workflow.ID)
			if gerr == nil && refreshed.State == sync.StateFailed {
				report.Abandoned++
			} else {
				report.Retried++
			}
			continue
		}
		report.Completed++
	}

	if report.Scanned > 0 {
		logger.InfoCtx(ctx, "sync pass finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("completed", report.Completed),
			zap.Int("retried", report.Retried),
			zap.Int("abandoned", report.Abandoned))
	}
	return report, nil
}

// resumeOne re-drives a single workflow, abandoning those whose client
// or enrollment has gone away
func (s *enrollmentService) resumeOne(ctx context.Context, workflow *sync.EnrollmentWorkflow) error {
	client, err := s.clients.GetByID(ctx, workflow.ClientID)
	if err != nil {
		err = fmt.Errorf("failed to get client: %w", err)
		s.noteStepFailure(ctx, workflow, err)
		return err
	}
	if client == nil || !client.IsActive {
		err := errors.New("client is no longer installed")
		s.abandonWorkflow(ctx, workflow.ID, err.Error())
		return err
	}

	enrollment, err := s.enrollments.GetByID(ctx, workflow.EnrollmentID)
	if err != nil {
		err = fmt.Errorf("failed to load enrollment: %w", err)
		s.noteStepFailure(ctx, workflow, err)
		return err
	}
	if enrollment == nil || !enrollment.IsOpen() {
		err := errors.New("enrollment is no longer open")
		s.abandonWorkflow(ctx, workflow.ID, err.Error())
		return err
	}

	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		s.noteStepFailure(ctx, workflow, err)
		return err
	}
	return s.runWorkflow(ctx, client, provider, workflow.ID)
}
