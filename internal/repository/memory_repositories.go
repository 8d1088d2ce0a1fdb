package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// In-process implementations of the data-access interfaces. They back
// service and provider tests plus local development without Postgres;
// semantics mirror the Postgres repositories, including nil, nil misses
// and soft-delete filtering.

// MemoryClientRepository implements ClientRepository with a map.
type MemoryClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

// NewMemoryClientRepository creates a new MemoryClientRepository
func NewMemoryClientRepository() *MemoryClientRepository {
	return &MemoryClientRepository{clients: make(map[string]*domain.Client)}
}

// Create persists a new client
func (r *MemoryClientRepository) Create(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *client
	r.clients[client.ID] = &stored
	return nil
}

// GetByID retrieves a client, returning nil, nil on a miss
func (r *MemoryClientRepository) GetByID(_ context.Context, id string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.clients[id]
	if !ok || stored.DeletedAt != nil {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// GetByTenant retrieves the client bound to a platform identity
func (r *MemoryClientRepository) GetByTenant(_ context.Context, crmType, tenantShop string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.clients {
		if stored.DeletedAt == nil && stored.CRMType == crmType && stored.TenantShop == tenantShop {
			out := *stored
			return &out, nil
		}
	}
	return nil, nil
}

// Update updates a client
func (r *MemoryClientRepository) Update(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[client.ID]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	updated := *client
	r.clients[client.ID] = &updated
	return nil
}

// SoftDelete soft deletes a client
func (r *MemoryClientRepository) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[id]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	now := time.Now()
	stored.DeletedAt = &now
	return nil
}

// MemoryClubProgramRepository implements ClubProgramRepository with a map.
type MemoryClubProgramRepository struct {
	mu       sync.RWMutex
	programs map[string]*domain.ClubProgram
}

// NewMemoryClubProgramRepository creates a new MemoryClubProgramRepository
func NewMemoryClubProgramRepository() *MemoryClubProgramRepository {
	return &MemoryClubProgramRepository{programs: make(map[string]*domain.ClubProgram)}
}

// Create persists a new program
func (r *MemoryClubProgramRepository) Create(_ context.Context, program *domain.ClubProgram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *program
	r.programs[program.ID] = &stored
	return nil
}

// GetByID retrieves a program, returning nil, nil on a miss
func (r *MemoryClubProgramRepository) GetByID(_ context.Context, id string) (*domain.ClubProgram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.programs[id]
	if !ok || stored.DeletedAt != nil {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// GetByClientID retrieves a client's active program
func (r *MemoryClubProgramRepository) GetByClientID(_ context.Context, clientID string) (*domain.ClubProgram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.programs {
		if stored.DeletedAt == nil && stored.IsActive && stored.ClientID == clientID {
			out := *stored
			return &out, nil
		}
	}
	return nil, nil
}

// Update updates a program
func (r *MemoryClubProgramRepository) Update(_ context.Context, program *domain.ClubProgram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.programs[program.ID]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	updated := *program
	r.programs[program.ID] = &updated
	return nil
}

// MemoryClubStageRepository implements ClubStageRepository with a map.
type MemoryClubStageRepository struct {
	mu     sync.RWMutex
	stages map[string]*domain.ClubStage
}

// NewMemoryClubStageRepository creates a new MemoryClubStageRepository
func NewMemoryClubStageRepository() *MemoryClubStageRepository {
	return &MemoryClubStageRepository{stages: make(map[string]*domain.ClubStage)}
}

// Create persists a new stage
func (r *MemoryClubStageRepository) Create(_ context.Context, stage *domain.ClubStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *stage
	r.stages[stage.ID] = &stored
	return nil
}

// GetByID retrieves a stage, returning nil, nil on a miss
func (r *MemoryClubStageRepository) GetByID(_ context.Context, id string) (*domain.ClubStage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.stages[id]
	if !ok || stored.DeletedAt != nil {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// ListByProgram retrieves a program's stages ascending by stage_order
func (r *MemoryClubStageRepository) ListByProgram(_ context.Context, programID string, activeOnly bool) ([]*domain.ClubStage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stages []*domain.ClubStage
	for _, stored := range r.stages {
		if stored.DeletedAt != nil || stored.ClubProgramID != programID {
			continue
		}
		if activeOnly && !stored.IsActive {
			continue
		}
		out := *stored
		stages = append(stages, &out)
	}
	sort.Slice(stages, func(i, j int) bool {
		return stages[i].StageOrder < stages[j].StageOrder
	})
	return stages, nil
}

// Update updates a stage
func (r *MemoryClubStageRepository) Update(_ context.Context, stage *domain.ClubStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.stages[stage.ID]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	updated := *stage
	r.stages[stage.ID] = &updated
	return nil
}

// SoftDelete soft deletes a stage and marks it inactive
func (r *MemoryClubStageRepository) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.stages[id]
	if !ok || stored.DeletedAt != nil {
		return nil
	}
	now := time.Now()
	stored.DeletedAt = &now
	stored.IsActive = false
	return nil
}

// ActiveOrderTaken checks whether another active stage holds the order
func (r *MemoryClubStageRepository) ActiveOrderTaken(_ context.Context, programID string, stageOrder int, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.stages {
		if stored.DeletedAt != nil || !stored.IsActive {
			continue
		}
		if stored.ClubProgramID == programID && stored.StageOrder == stageOrder && stored.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// MemoryCustomerRepository implements CustomerRepository with a map
// keyed by (client_id, platform_customer_id).
type MemoryCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
}

// NewMemoryCustomerRepository creates a new MemoryCustomerRepository
func NewMemoryCustomerRepository() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{customers: make(map[string]*domain.Customer)}
}

func customerKey(clientID, platformCustomerID string) string {
	return clientID + ":" + platformCustomerID
}

// Upsert inserts or refreshes a customer. The conflict path keeps the
// stored identity and creation time, matching the Postgres ON CONFLICT
// clause.
func (r *MemoryCustomerRepository) Upsert(_ context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := customerKey(customer.ClientID, customer.PlatformCustomerID)
	stored := *customer
	if existing, ok := r.customers[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	r.customers[key] = &stored
	return nil
}

// GetByID retrieves a customer by local ID, returning nil, nil on a miss
func (r *MemoryCustomerRepository) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.customers {
		if stored.ID == id {
			out := *stored
			return &out, nil
		}
	}
	return nil, nil
}

// GetByPlatformID retrieves a customer by platform identity
func (r *MemoryCustomerRepository) GetByPlatformID(_ context.Context, clientID, platformCustomerID string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.customers[customerKey(clientID, platformCustomerID)]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// GetByEmail retrieves a customer by email within a client
func (r *MemoryCustomerRepository) GetByEmail(_ context.Context, clientID, email string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.customers {
		if stored.ClientID == clientID && strings.EqualFold(stored.Email, email) {
			out := *stored
			return &out, nil
		}
	}
	return nil, nil
}

// DeleteByPlatformID removes the mirror row; missing rows are not an error
func (r *MemoryCustomerRepository) DeleteByPlatformID(_ context.Context, clientID, platformCustomerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.customers, customerKey(clientID, platformCustomerID))
	return nil
}

// MemoryEnrollmentRepository implements EnrollmentRepository with a map.
type MemoryEnrollmentRepository struct {
	mu          sync.RWMutex
	enrollments map[string]*domain.Enrollment
}

// NewMemoryEnrollmentRepository creates a new MemoryEnrollmentRepository
func NewMemoryEnrollmentRepository() *MemoryEnrollmentRepository {
	return &MemoryEnrollmentRepository{enrollments: make(map[string]*domain.Enrollment)}
}

// Create persists a new enrollment
func (r *MemoryEnrollmentRepository) Create(_ context.Context, enrollment *domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *enrollment
	r.enrollments[enrollment.ID] = &stored
	return nil
}

// GetByID retrieves an enrollment, returning nil, nil on a miss
func (r *MemoryEnrollmentRepository) GetByID(_ context.Context, id string) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.enrollments[id]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// GetOpenByCustomer retrieves a customer's pending or active enrollment
func (r *MemoryEnrollmentRepository) GetOpenByCustomer(_ context.Context, clientID, customerID string) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *domain.Enrollment
	for _, stored := range r.enrollments {
		if stored.ClientID != clientID || stored.CustomerID != customerID || !stored.IsOpen() {
			continue
		}
		if newest == nil || stored.CreatedAt.After(newest.CreatedAt) {
			newest = stored
		}
	}
	if newest == nil {
		return nil, nil
	}
	out := *newest
	return &out, nil
}

// GetByPlatformMembershipID retrieves the enrollment mapped to a
// platform membership
func (r *MemoryEnrollmentRepository) GetByPlatformMembershipID(_ context.Context, clientID, platformMembershipID string) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *domain.Enrollment
	for _, stored := range r.enrollments {
		if stored.ClientID != clientID || stored.PlatformMembershipID != platformMembershipID {
			continue
		}
		if newest == nil || stored.CreatedAt.After(newest.CreatedAt) {
			newest = stored
		}
	}
	if newest == nil {
		return nil, nil
	}
	out := *newest
	return &out, nil
}

// ListByClient retrieves a client's enrollments newest first
func (r *MemoryEnrollmentRepository) ListByClient(_ context.Context, clientID string, page, limit int, status string) ([]*domain.Enrollment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var matched []*domain.Enrollment
	for _, stored := range r.enrollments {
		if stored.ClientID != clientID {
			continue
		}
		if status != "" && stored.Status != status {
			continue
		}
		out := *stored
		matched = append(matched, &out)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Enrollment{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Update updates an enrollment
func (r *MemoryEnrollmentRepository) Update(_ context.Context, enrollment *domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.enrollments[enrollment.ID]; !ok {
		return nil
	}
	updated := *enrollment
	r.enrollments[enrollment.ID] = &updated
	return nil
}

// CountOpenByStage counts open enrollments referencing a stage
func (r *MemoryEnrollmentRepository) CountOpenByStage(_ context.Context, stageID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, stored := range r.enrollments {
		if stored.ClubStageID == stageID && stored.IsOpen() {
			count++
		}
	}
	return count, nil
}

// MemoryWebhookEventRepository implements WebhookEventRepository with a
// slice.
type MemoryWebhookEventRepository struct {
	mu      sync.RWMutex
	records []*domain.WebhookEventRecord
}

// NewMemoryWebhookEventRepository creates a new MemoryWebhookEventRepository
func NewMemoryWebhookEventRepository() *MemoryWebhookEventRepository {
	return &MemoryWebhookEventRepository{}
}

// Record appends one journal row
func (r *MemoryWebhookEventRepository) Record(_ context.Context, record *domain.WebhookEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	r.records = append(r.records, &stored)
	return nil
}

// ListRecent retrieves the newest journal rows for a client
func (r *MemoryWebhookEventRepository) ListRecent(_ context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}

	var matched []*domain.WebhookEventRecord
	for i := len(r.records) - 1; i >= 0 && len(matched) < limit; i-- {
		if r.records[i].ClientID == clientID {
			out := *r.records[i]
			matched = append(matched, &out)
		}
	}
	return matched, nil
}
