package quotes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/internal/serviceorders"
	"github.com/oficinahub/oficina-backend/pkg/auth/quotelink"
	"github.com/oficinahub/oficina-backend/pkg/config"
	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
	"github.com/oficinahub/oficina-backend/pkg/types"
)

type stubQuoteRepo struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*models.Quote
	number int64
}

func newStubQuoteRepo() *stubQuoteRepo {
	return &stubQuoteRepo{quotes: make(map[uuid.UUID]*models.Quote)}
}

func (s *stubQuoteRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubQuoteRepo) CreateQuote(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	stored := *quote
	s.quotes[quote.ID] = &stored
	return copyQuote(&stored), nil
}

func (s *stubQuoteRepo) FindQuote(ctx context.Context, workshopID, quoteID uuid.UUID) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok || quote.WorkshopID != workshopID {
		return nil, gorm.ErrRecordNotFound
	}
	return copyQuote(quote), nil
}

func (s *stubQuoteRepo) FindQuoteByID(ctx context.Context, quoteID uuid.UUID) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyQuote(quote), nil
}

func (s *stubQuoteRepo) ListQuotes(ctx context.Context, workshopID uuid.UUID, filters ListFilters) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Quote
	for _, quote := range s.quotes {
		if quote.WorkshopID != workshopID {
			continue
		}
		if filters.Status != nil && quote.Status != *filters.Status {
			continue
		}
		list = append(list, *copyQuote(quote))
	}
	return list, nil
}

func (s *stubQuoteRepo) ListMechanicQuotes(ctx context.Context, workshopID, mechanicID uuid.UUID, filters ListFilters) ([]models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Quote
	for _, quote := range s.quotes {
		if quote.WorkshopID != workshopID {
			continue
		}
		open := quote.Status == enums.QuoteStatusAwaitingDiagnosis && quote.AssignedMechanicID == nil
		mine := quote.AssignedMechanicID != nil && *quote.AssignedMechanicID == mechanicID
		if !open && !mine {
			continue
		}
		if filters.Status != nil && quote.Status != *filters.Status {
			continue
		}
		list = append(list, *copyQuote(quote))
	}
	return list, nil
}

func (s *stubQuoteRepo) NextQuoteNumber(ctx context.Context, workshopID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.number++
	return s.number, nil
}

func (s *stubQuoteRepo) UpdateQuote(ctx context.Context, quoteID uuid.UUID, allowed []enums.QuoteStatus, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range allowed {
		if quote.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	applyQuoteUpdates(quote, updates)
	return true, nil
}

func (s *stubQuoteRepo) ReplaceItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	quote.Items = append([]models.QuoteItem(nil), items...)
	return nil
}

func (s *stubQuoteRepo) ClaimQuote(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return false, nil
	}
	if quote.Status != enums.QuoteStatusAwaitingDiagnosis || quote.AssignedMechanicID != nil {
		return false, nil
	}
	id := mechanicID
	quote.AssignedMechanicID = &id
	return true, nil
}

func (s *stubQuoteRepo) ReassignMechanic(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return false, nil
	}
	if quote.Status != enums.QuoteStatusAwaitingDiagnosis {
		return false, nil
	}
	id := mechanicID
	quote.AssignedMechanicID = &id
	return true, nil
}

func (s *stubQuoteRepo) TransitionStatus(ctx context.Context, quoteID uuid.UUID, from, to enums.QuoteStatus, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok || quote.Status != from {
		return false, nil
	}
	quote.Status = to
	applyQuoteUpdates(quote, updates)
	return true, nil
}

func (s *stubQuoteRepo) DecideQuote(ctx context.Context, quoteID uuid.UUID, to enums.QuoteStatus, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[quoteID]
	if !ok {
		return false, nil
	}
	if quote.Status != enums.QuoteStatusSent && quote.Status != enums.QuoteStatusViewed {
		return false, nil
	}
	quote.Status = to
	applyQuoteUpdates(quote, updates)
	return true, nil
}

func copyQuote(quote *models.Quote) *models.Quote {
	clone := *quote
	clone.Items = append([]models.QuoteItem(nil), quote.Items...)
	return &clone
}

func applyQuoteUpdates(quote *models.Quote, updates map[string]any) {
	for column, value := range updates {
		switch column {
		case "problem_category":
			quote.ProblemCategory = value.(enums.ProblemCategory)
		case "problem_description":
			quote.ProblemDescription = value.(string)
		case "symptoms":
			quote.Symptoms = value.(types.StringList)
		case "service_bay_id":
			id := value.(uuid.UUID)
			quote.ServiceBayID = &id
		case "identified_category":
			category := value.(enums.ProblemCategory)
			quote.IdentifiedCategory = &category
		case "identified_description":
			text := value.(string)
			quote.IdentifiedDescription = &text
		case "diagnostic_notes":
			quote.DiagnosticNotes, _ = value.(*string)
		case "recommendations":
			quote.Recommendations, _ = value.(*string)
		case "diagnosed_at":
			at := value.(time.Time)
			quote.DiagnosedAt = &at
		case "sent_at":
			at := value.(time.Time)
			quote.SentAt = &at
		case "valid_until":
			at := value.(time.Time)
			quote.ValidUntil = &at
		case "viewed_at":
			at := value.(time.Time)
			quote.ViewedAt = &at
		case "decided_at":
			at := value.(time.Time)
			quote.DecidedAt = &at
		case "customer_signature":
			text := value.(string)
			quote.CustomerSignature = &text
		case "rejection_reason":
			text := value.(string)
			quote.RejectionReason = &text
		case "service_order_id":
			id := value.(uuid.UUID)
			quote.ServiceOrderID = &id
		case "labor_cost":
			quote.LaborCost = value.(decimal.Decimal)
		case "parts_cost":
			quote.PartsCost = value.(decimal.Decimal)
		case "discount":
			quote.Discount = value.(decimal.Decimal)
		case "tax":
			quote.Tax = value.(decimal.Decimal)
		case "grand_total":
			quote.GrandTotal = value.(decimal.Decimal)
		}
	}
}

type stubOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*models.ServiceOrder
	byQuote map[uuid.UUID]uuid.UUID
	number  int64
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:  make(map[uuid.UUID]*models.ServiceOrder),
		byQuote: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) serviceorders.Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.ServiceOrder) (*models.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byQuote[order.QuoteID]; exists {
		return nil, gorm.ErrDuplicatedKey
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	stored := *order
	s.orders[order.ID] = &stored
	s.byQuote[order.QuoteID] = order.ID
	return &stored, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, workshopID, orderID uuid.UUID) (*models.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.WorkshopID != workshopID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrderRepo) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*models.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderID, ok := s.byQuote[quoteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.orders[orderID]
	return &clone, nil
}

func (s *stubOrderRepo) NextNumber(ctx context.Context, workshopID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.number++
	return s.number, nil
}

type stubDirectoryRepo struct {
	customer *models.Customer
	vehicle  *models.Vehicle
	bay      *models.ServiceBay
}

func (s *stubDirectoryRepo) FindCustomer(ctx context.Context, workshopID, customerID uuid.UUID) (*models.Customer, error) {
	if s.customer == nil || s.customer.ID != customerID || s.customer.WorkshopID != workshopID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.customer, nil
}

func (s *stubDirectoryRepo) FindVehicle(ctx context.Context, workshopID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	if s.vehicle == nil || s.vehicle.ID != vehicleID || s.vehicle.WorkshopID != workshopID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.vehicle, nil
}

func (s *stubDirectoryRepo) FindServiceBay(ctx context.Context, workshopID, bayID uuid.UUID) (*models.ServiceBay, error) {
	if s.bay == nil || s.bay.ID != bayID || s.bay.WorkshopID != workshopID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.bay, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// racingQuoteRepo lets a test mutate the store between the service's
// status check and the conditional write, simulating a lost race.
type racingQuoteRepo struct {
	*stubQuoteRepo
	beforeClaim  func()
	beforeUpdate func()
}

func (r *racingQuoteRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *racingQuoteRepo) ClaimQuote(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error) {
	if r.beforeClaim != nil {
		r.beforeClaim()
	}
	return r.stubQuoteRepo.ClaimQuote(ctx, quoteID, mechanicID)
}

func (r *racingQuoteRepo) UpdateQuote(ctx context.Context, quoteID uuid.UUID, allowed []enums.QuoteStatus, updates map[string]any) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	return r.stubQuoteRepo.UpdateQuote(ctx, quoteID, allowed, updates)
}

type serviceFixture struct {
	svc      Service
	repo     *stubQuoteRepo
	orders   *stubOrderRepo
	link     config.QuoteLinkConfig
	workshop uuid.UUID
	customer uuid.UUID
	vehicle  uuid.UUID
	manager  Actor
	staff    Actor
	mechanic Actor
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	workshopID := uuid.New()
	customerID := uuid.New()
	vehicleID := uuid.New()

	repo := newStubQuoteRepo()
	orders := newStubOrderRepo()
	dir := &stubDirectoryRepo{
		customer: &models.Customer{ID: customerID, WorkshopID: workshopID, Name: "Dona Maria"},
		vehicle:  &models.Vehicle{ID: vehicleID, WorkshopID: workshopID, CustomerID: customerID},
	}
	link := config.QuoteLinkConfig{
		Secret:          "test-secret",
		Issuer:          "oficina-quote-link",
		DefaultValidity: 7 * 24 * time.Hour,
	}

	svc, err := NewService(repo, orders, dir, stubTxRunner{}, link, nil)
	require.NoError(t, err)

	return &serviceFixture{
		svc:      svc,
		repo:     repo,
		orders:   orders,
		link:     link,
		workshop: workshopID,
		customer: customerID,
		vehicle:  vehicleID,
		manager:  Actor{UserID: uuid.New(), WorkshopID: workshopID, Role: enums.MemberRoleManager},
		staff:    Actor{UserID: uuid.New(), WorkshopID: workshopID, Role: enums.MemberRoleStaff},
		mechanic: Actor{UserID: uuid.New(), WorkshopID: workshopID, Role: enums.MemberRoleMechanic},
	}
}

func (f *serviceFixture) seedQuote(t *testing.T, status enums.QuoteStatus, mutate ...func(*models.Quote)) *models.Quote {
	t.Helper()
	quote := &models.Quote{
		ID:                 uuid.New(),
		WorkshopID:         f.workshop,
		Number:             int64(len(f.repo.quotes) + 1),
		Status:             status,
		CustomerID:         f.customer,
		VehicleID:          f.vehicle,
		ProblemCategory:    enums.ProblemCategoryBrakes,
		ProblemDescription: "barulho ao frear",
	}
	for _, fn := range mutate {
		fn(quote)
	}
	f.repo.quotes[quote.ID] = quote
	return quote
}

func (f *serviceFixture) mintToken(t *testing.T, quote *models.Quote, validUntil time.Time) string {
	t.Helper()
	token, err := quotelink.Mint(f.link, time.Now().UTC(), quote.ID, quote.WorkshopID, validUntil)
	require.NoError(t, err)
	return token
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestCreateQuoteStartsAsDraft(t *testing.T) {
	f := newServiceFixture(t)

	quote, err := f.svc.Create(context.Background(), f.staff, CreateQuoteInput{
		CustomerID:         f.customer,
		VehicleID:          f.vehicle,
		ProblemCategory:    enums.ProblemCategoryBrakes,
		ProblemDescription: "barulho ao frear",
		Symptoms:           []string{"rangido", "vibracao no pedal"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusDraft, quote.Status)
	assert.Equal(t, int64(1), quote.Number)
	assert.Nil(t, quote.AssignedMechanicID)
}

func TestCreateQuoteRejectsForeignVehicle(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Create(context.Background(), f.staff, CreateQuoteInput{
		CustomerID:         f.customer,
		VehicleID:          uuid.New(),
		ProblemCategory:    enums.ProblemCategoryEngine,
		ProblemDescription: "motor falhando",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestSubmitMovesDraftToDiagnosisQueue(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDraft)

	updated, err := f.svc.Submit(context.Background(), f.staff, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAwaitingDiagnosis, updated.Status)
}

func TestSubmitRejectsNonDraft(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusSent)

	_, err := f.svc.Submit(context.Background(), f.staff, quote.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)

	rival := Actor{UserID: uuid.New(), WorkshopID: f.workshop, Role: enums.MemberRoleMechanic}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []Actor{f.mechanic, rival} {
		wg.Add(1)
		go func(slot int, actor Actor) {
			defer wg.Done()
			_, errs[slot] = f.svc.Claim(context.Background(), actor, quote.ID)
		}(i, actor)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assertCode(t, err, pkgerrors.CodeAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, winners, "exactly one mechanic must win the claim")

	stored := f.repo.quotes[quote.ID]
	require.NotNil(t, stored.AssignedMechanicID)
}

func TestClaimIsIdempotentForOwner(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.mechanic.UserID
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis, func(q *models.Quote) {
		q.AssignedMechanicID = &owner
	})

	claimed, err := f.svc.Claim(context.Background(), f.mechanic, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.AssignedMechanicID)
	assert.Equal(t, owner, *claimed.AssignedMechanicID)
}

func TestClaimRejectsWrongStatus(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDraft)

	_, err := f.svc.Claim(context.Background(), f.mechanic, quote.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestClaimLostToStatusChangeIsInvalidTransition(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)

	// The quote gets reassigned and diagnosed between this mechanic's
	// status check and the conditional claim.
	rival := uuid.New()
	racing := &racingQuoteRepo{stubQuoteRepo: f.repo}
	racing.beforeClaim = func() {
		f.repo.mu.Lock()
		stored := f.repo.quotes[quote.ID]
		stored.Status = enums.QuoteStatusDiagnosed
		stored.AssignedMechanicID = &rival
		f.repo.mu.Unlock()
	}
	svc, err := NewService(racing, f.orders, &stubDirectoryRepo{}, stubTxRunner{}, f.link, nil)
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), f.mechanic, quote.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestClaimRequiresMechanicRole(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)

	_, err := f.svc.Claim(context.Background(), f.staff, quote.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestReassignRequiresManager(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)

	_, err := f.svc.Reassign(context.Background(), f.staff, quote.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestReassignOverridesExistingMechanic(t *testing.T) {
	f := newServiceFixture(t)
	previous := uuid.New()
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis, func(q *models.Quote) {
		q.AssignedMechanicID = &previous
	})

	next := uuid.New()
	updated, err := f.svc.Reassign(context.Background(), f.manager, quote.ID, next)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedMechanicID)
	assert.Equal(t, next, *updated.AssignedMechanicID)
}

func TestDiagnoseRequiresOwnership(t *testing.T) {
	f := newServiceFixture(t)
	other := uuid.New()
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis, func(q *models.Quote) {
		q.AssignedMechanicID = &other
	})

	_, err := f.svc.Diagnose(context.Background(), f.mechanic, quote.ID, DiagnoseInput{
		IdentifiedCategory:    enums.ProblemCategoryBrakes,
		IdentifiedDescription: "pastilhas gastas",
	})
	assertCode(t, err, pkgerrors.CodeNotOwner)
}

func TestDiagnoseRequiresAssignment(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)

	_, err := f.svc.Diagnose(context.Background(), f.mechanic, quote.ID, DiagnoseInput{
		IdentifiedCategory:    enums.ProblemCategoryBrakes,
		IdentifiedDescription: "pastilhas gastas",
	})
	assertCode(t, err, pkgerrors.CodeNotAssigned)
}

func TestDiagnoseRecordsFindings(t *testing.T) {
	f := newServiceFixture(t)
	owner := f.mechanic.UserID
	quote := f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis, func(q *models.Quote) {
		q.AssignedMechanicID = &owner
	})

	notes := "disco no limite"
	diagnosed, err := f.svc.Diagnose(context.Background(), f.mechanic, quote.ID, DiagnoseInput{
		IdentifiedCategory:    enums.ProblemCategoryBrakes,
		IdentifiedDescription: "pastilhas e discos gastos",
		DiagnosticNotes:       &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusDiagnosed, diagnosed.Status)
	require.NotNil(t, diagnosed.IdentifiedCategory)
	assert.Equal(t, enums.ProblemCategoryBrakes, *diagnosed.IdentifiedCategory)
	require.NotNil(t, diagnosed.DiagnosedAt)
}

func TestUpdateLocksReportedProblemAfterDiagnosis(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed)

	description := "nova descricao"
	_, err := f.svc.Update(context.Background(), f.staff, quote.ID, UpdateQuoteInput{
		ProblemDescription: &description,
	})
	assertCode(t, err, pkgerrors.CodeFieldLocked)
}

func TestUpdateLocksPricingBeforeDiagnosis(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDraft)

	labor := decimal.RequireFromString("100.00")
	_, err := f.svc.Update(context.Background(), f.staff, quote.ID, UpdateQuoteInput{
		LaborCost: &labor,
	})
	assertCode(t, err, pkgerrors.CodeFieldLocked)
}

func TestUpdatePricingRecomputesGrandTotal(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed)

	labor := decimal.RequireFromString("150.00")
	items := []ItemInput{
		{Type: enums.QuoteItemTypePart, Name: "pastilha de freio", Quantity: 4, UnitCost: decimal.RequireFromString("25.00")},
	}
	updated, err := f.svc.Update(context.Background(), f.staff, quote.ID, UpdateQuoteInput{
		Items:     &items,
		LaborCost: &labor,
	})
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(decimal.RequireFromString("250.00")), "got %s", updated.GrandTotal)
	require.Len(t, updated.Items, 1)
	assert.True(t, updated.Items[0].TotalCost.Equal(decimal.RequireFromString("100.00")))
}

func TestUpdatePricingLosesToConcurrentDecision(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusViewed)

	// A customer rejection lands between the gate check and the write.
	racing := &racingQuoteRepo{stubQuoteRepo: f.repo}
	racing.beforeUpdate = func() {
		f.repo.mu.Lock()
		f.repo.quotes[quote.ID].Status = enums.QuoteStatusRejected
		f.repo.mu.Unlock()
	}
	svc, err := NewService(racing, f.orders, &stubDirectoryRepo{}, stubTxRunner{}, f.link, nil)
	require.NoError(t, err)

	labor := decimal.RequireFromString("999.00")
	_, err = svc.Update(context.Background(), f.staff, quote.ID, UpdateQuoteInput{LaborCost: &labor})
	assertCode(t, err, pkgerrors.CodeFieldLocked)
	assert.False(t, f.repo.quotes[quote.ID].LaborCost.Equal(labor), "closed quote must not take pricing writes")
}

func TestSendMintsVerifiableToken(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed)

	result, err := f.svc.Send(context.Background(), f.staff, quote.ID, SendInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusSent, result.Quote.Status)
	require.NotNil(t, result.Quote.SentAt)
	require.NotNil(t, result.Quote.ValidUntil)

	claims, err := quotelink.Verify(f.link, result.Token)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, claims.QuoteID)
	assert.Equal(t, f.workshop, claims.WorkshopID)
}

func TestSendRejectsPastValidity(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed)

	past := time.Now().UTC().Add(-time.Hour)
	_, err := f.svc.Send(context.Background(), f.staff, quote.ID, SendInput{ValidUntil: &past})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestViewByTokenFlipsSentToViewedOnce(t *testing.T) {
	f := newServiceFixture(t)
	validUntil := time.Now().UTC().Add(24 * time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusSent, func(q *models.Quote) {
		q.ValidUntil = &validUntil
	})
	token := f.mintToken(t, quote, validUntil)

	view, err := f.svc.ViewByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusViewed, view.Status)
	require.NotNil(t, view.Quote)
	require.NotNil(t, view.Quote.ViewedAt)
	firstViewedAt := *view.Quote.ViewedAt

	again, err := f.svc.ViewByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusViewed, again.Status)
	require.NotNil(t, again.Quote.ViewedAt)
	assert.Equal(t, firstViewedAt, *again.Quote.ViewedAt, "viewed_at must not move on later views")
}

func TestViewByTokenLazyExpiry(t *testing.T) {
	f := newServiceFixture(t)
	expiredAt := time.Now().UTC().Add(-time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusSent, func(q *models.Quote) {
		q.ValidUntil = &expiredAt
	})
	// Token itself still valid; only the quote window has elapsed.
	token := f.mintToken(t, quote, time.Now().UTC().Add(time.Hour))

	view, err := f.svc.ViewByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusExpired, view.Status)
	assert.Nil(t, view.Quote, "expired links must not expose the quote body")
	assert.Equal(t, enums.QuoteStatusExpired, f.repo.quotes[quote.ID].Status)
}

func TestViewByTokenRejectsGarbage(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.ViewByToken(context.Background(), "not-a-token")
	assertCode(t, err, pkgerrors.CodeInvalidToken)
}

func TestApproveByTokenConvertsAtomically(t *testing.T) {
	f := newServiceFixture(t)
	validUntil := time.Now().UTC().Add(24 * time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusViewed, func(q *models.Quote) {
		q.ValidUntil = &validUntil
		q.LaborCost = decimal.RequireFromString("150.00")
		q.Items = []models.QuoteItem{
			{ID: uuid.New(), QuoteID: q.ID, Type: enums.QuoteItemTypePart, Name: "pastilha de freio", Quantity: 4, UnitCost: decimal.RequireFromString("25.00")},
		}
	})
	token := f.mintToken(t, quote, validUntil)

	result, err := f.svc.ApproveByToken(context.Background(), token, "Maria Silva")
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusConverted, result.Quote.Status)
	require.NotNil(t, result.ServiceOrder)
	assert.Equal(t, quote.ID, result.ServiceOrder.QuoteID)
	assert.True(t, result.ServiceOrder.TotalCost.Equal(decimal.RequireFromString("250.00")), "got %s", result.ServiceOrder.TotalCost)
	require.NotNil(t, result.Quote.ServiceOrderID)
	assert.Equal(t, result.ServiceOrder.ID, *result.Quote.ServiceOrderID)
	require.Len(t, result.ServiceOrder.Items, 1)
}

func TestApproveThenRejectIsAlreadyDecided(t *testing.T) {
	f := newServiceFixture(t)
	validUntil := time.Now().UTC().Add(24 * time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusSent, func(q *models.Quote) {
		q.ValidUntil = &validUntil
	})
	token := f.mintToken(t, quote, validUntil)

	_, err := f.svc.ApproveByToken(context.Background(), token, "Maria Silva")
	require.NoError(t, err)

	_, err = f.svc.RejectByToken(context.Background(), token, "muito caro")
	assertCode(t, err, pkgerrors.CodeAlreadyDecided)
}

func TestRejectRecordsReason(t *testing.T) {
	f := newServiceFixture(t)
	validUntil := time.Now().UTC().Add(24 * time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusViewed, func(q *models.Quote) {
		q.ValidUntil = &validUntil
	})
	token := f.mintToken(t, quote, validUntil)

	rejected, err := f.svc.RejectByToken(context.Background(), token, "muito caro")
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "muito caro", *rejected.RejectionReason)
	require.NotNil(t, rejected.DecidedAt)
}

func TestDecideOnExpiredWindowRejectsLink(t *testing.T) {
	f := newServiceFixture(t)
	expiredAt := time.Now().UTC().Add(-time.Hour)
	quote := f.seedQuote(t, enums.QuoteStatusViewed, func(q *models.Quote) {
		q.ValidUntil = &expiredAt
	})
	token := f.mintToken(t, quote, time.Now().UTC().Add(time.Hour))

	_, err := f.svc.ApproveByToken(context.Background(), token, "Maria Silva")
	assertCode(t, err, pkgerrors.CodeInvalidToken)
	assert.Equal(t, enums.QuoteStatusExpired, f.repo.quotes[quote.ID].Status)
}

func TestConvertIsNoOpWhenAlreadyConverted(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusConverted)
	order, err := f.orders.Create(context.Background(), &models.ServiceOrder{
		WorkshopID: f.workshop,
		Number:     1,
		QuoteID:    quote.ID,
		CustomerID: f.customer,
		VehicleID:  f.vehicle,
	})
	require.NoError(t, err)
	quote.ServiceOrderID = &order.ID

	result, err := f.svc.Convert(context.Background(), f.manager, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, result.ServiceOrder.ID)
	assert.Len(t, f.orders.orders, 1, "no duplicate order may be created")
}

func TestConvertFinishesPartialConversion(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusAccepted)
	// An earlier attempt wrote the order but crashed before flipping the
	// status; the retry must link it instead of creating a second one.
	order, err := f.orders.Create(context.Background(), &models.ServiceOrder{
		WorkshopID: f.workshop,
		Number:     1,
		QuoteID:    quote.ID,
		CustomerID: f.customer,
		VehicleID:  f.vehicle,
	})
	require.NoError(t, err)

	result, err := f.svc.Convert(context.Background(), f.staff, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusConverted, result.Quote.Status)
	assert.Equal(t, order.ID, result.ServiceOrder.ID)
	assert.Len(t, f.orders.orders, 1)
}

func TestConvertRejectsUndecidedQuote(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusSent)

	_, err := f.svc.Convert(context.Background(), f.staff, quote.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestGetHidesForeignAssignedQuoteFromMechanic(t *testing.T) {
	f := newServiceFixture(t)
	other := uuid.New()
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed, func(q *models.Quote) {
		q.AssignedMechanicID = &other
	})

	_, err := f.svc.Get(context.Background(), f.mechanic, quote.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	got, err := f.svc.Get(context.Background(), f.staff, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, got.ID)
}

func TestUpdateHidesForeignAssignedQuoteFromMechanic(t *testing.T) {
	f := newServiceFixture(t)
	other := uuid.New()
	quote := f.seedQuote(t, enums.QuoteStatusDiagnosed, func(q *models.Quote) {
		q.AssignedMechanicID = &other
	})

	labor := decimal.RequireFromString("999.00")
	_, err := f.svc.Update(context.Background(), f.mechanic, quote.ID, UpdateQuoteInput{LaborCost: &labor})
	assertCode(t, err, pkgerrors.CodeNotFound)
	assert.False(t, f.repo.quotes[quote.ID].LaborCost.Equal(labor), "hidden quote must not be mutated")

	updated, err := f.svc.Update(context.Background(), f.staff, quote.ID, UpdateQuoteInput{LaborCost: &labor})
	require.NoError(t, err)
	assert.True(t, updated.LaborCost.Equal(labor))
}

func TestListForMechanicShowsQueueAndOwnWork(t *testing.T) {
	f := newServiceFixture(t)
	f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis)
	mine := f.mechanic.UserID
	f.seedQuote(t, enums.QuoteStatusDiagnosed, func(q *models.Quote) {
		q.AssignedMechanicID = &mine
	})
	other := uuid.New()
	f.seedQuote(t, enums.QuoteStatusAwaitingDiagnosis, func(q *models.Quote) {
		q.AssignedMechanicID = &other
	})

	list, err := f.svc.List(context.Background(), f.mechanic, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	all, err := f.svc.List(context.Background(), f.staff, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWorkshopIsolation(t *testing.T) {
	f := newServiceFixture(t)
	quote := f.seedQuote(t, enums.QuoteStatusDraft)

	outsider := Actor{UserID: uuid.New(), WorkshopID: uuid.New(), Role: enums.MemberRoleManager}
	_, err := f.svc.Get(context.Background(), outsider, quote.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

// Drives one quote through the whole pipeline: intake, diagnosis queue,
// claim, findings, pricing, send, customer view and approval, and the
// resulting service order.
func TestQuoteLifecycleDraftToConversion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	quote, err := f.svc.Create(ctx, f.staff, CreateQuoteInput{
		CustomerID:         f.customer,
		VehicleID:          f.vehicle,
		ProblemCategory:    enums.ProblemCategoryBrakes,
		ProblemDescription: "barulho ao frear",
		Symptoms:           []string{"rangido", "vibracao no pedal"},
	})
	require.NoError(t, err)
	require.Equal(t, enums.QuoteStatusDraft, quote.Status)

	submitted, err := f.svc.Submit(ctx, f.staff, quote.ID)
	require.NoError(t, err)
	require.Equal(t, enums.QuoteStatusAwaitingDiagnosis, submitted.Status)

	claimed, err := f.svc.Claim(ctx, f.mechanic, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.AssignedMechanicID)
	require.Equal(t, f.mechanic.UserID, *claimed.AssignedMechanicID)

	notes := "discos no limite de espessura"
	diagnosed, err := f.svc.Diagnose(ctx, f.mechanic, quote.ID, DiagnoseInput{
		IdentifiedCategory:    enums.ProblemCategoryBrakes,
		IdentifiedDescription: "pastilhas e discos gastos",
		DiagnosticNotes:       &notes,
	})
	require.NoError(t, err)
	require.Equal(t, enums.QuoteStatusDiagnosed, diagnosed.Status)

	labor := decimal.RequireFromString("150.00")
	items := []ItemInput{
		{Type: enums.QuoteItemTypePart, Name: "pastilha de freio", Quantity: 4, UnitCost: decimal.RequireFromString("25.00")},
	}
	priced, err := f.svc.Update(ctx, f.staff, quote.ID, UpdateQuoteInput{
		Items:     &items,
		LaborCost: &labor,
	})
	require.NoError(t, err)
	require.True(t, priced.GrandTotal.Equal(decimal.RequireFromString("250.00")), "got %s", priced.GrandTotal)

	sent, err := f.svc.Send(ctx, f.staff, quote.ID, SendInput{})
	require.NoError(t, err)
	require.Equal(t, enums.QuoteStatusSent, sent.Quote.Status)
	require.NotEmpty(t, sent.Token)

	view, err := f.svc.ViewByToken(ctx, sent.Token)
	require.NoError(t, err)
	require.Equal(t, enums.QuoteStatusViewed, view.Status)
	require.NotNil(t, view.Quote.ViewedAt)

	decision, err := f.svc.ApproveByToken(ctx, sent.Token, "Maria Silva")
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusConverted, decision.Quote.Status)
	require.NotNil(t, decision.Quote.CustomerSignature)
	assert.Equal(t, "Maria Silva", *decision.Quote.CustomerSignature)

	require.NotNil(t, decision.ServiceOrder)
	assert.Equal(t, quote.ID, decision.ServiceOrder.QuoteID)
	assert.True(t, decision.ServiceOrder.TotalCost.Equal(decimal.RequireFromString("250.00")), "got %s", decision.ServiceOrder.TotalCost)
	require.NotNil(t, decision.Quote.ServiceOrderID)
	assert.Equal(t, decision.ServiceOrder.ID, *decision.Quote.ServiceOrderID)
	assert.Len(t, f.orders.orders, 1)
}
