package quotes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
)

func setupQuotesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	quotes := `
CREATE TABLE IF NOT EXISTS quotes (
  id TEXT PRIMARY KEY,
  workshop_id TEXT NOT NULL,
  number INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  customer_id TEXT NOT NULL,
  vehicle_id TEXT NOT NULL,
  service_bay_id TEXT,
  problem_category TEXT NOT NULL,
  problem_description TEXT NOT NULL,
  symptoms TEXT,
  identified_category TEXT,
  identified_description TEXT,
  diagnostic_notes TEXT,
  recommendations TEXT,
  diagnosed_at DATETIME,
  assigned_mechanic_id TEXT,
  labor_cost NUMERIC NOT NULL DEFAULT 0,
  parts_cost NUMERIC NOT NULL DEFAULT 0,
  discount NUMERIC NOT NULL DEFAULT 0,
  tax NUMERIC NOT NULL DEFAULT 0,
  grand_total NUMERIC NOT NULL DEFAULT 0,
  customer_signature TEXT,
  rejection_reason TEXT,
  valid_until DATETIME,
  sent_at DATETIME,
  viewed_at DATETIME,
  decided_at DATETIME,
  service_order_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	quoteItems := `
CREATE TABLE IF NOT EXISTS quote_items (
  id TEXT PRIMARY KEY,
  quote_id TEXT NOT NULL,
  type TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_cost NUMERIC NOT NULL DEFAULT 0,
  total_cost NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(quotes).Error)
	require.NoError(t, db.Exec(quoteItems).Error)

	return db
}

func seedRepoQuote(t *testing.T, db *gorm.DB, workshopID uuid.UUID, number int64, status enums.QuoteStatus) *models.Quote {
	t.Helper()
	quote := &models.Quote{
		ID:                 uuid.New(),
		WorkshopID:         workshopID,
		Number:             number,
		Status:             status,
		CustomerID:         uuid.New(),
		VehicleID:          uuid.New(),
		ProblemCategory:    enums.ProblemCategoryEngine,
		ProblemDescription: "motor falhando em marcha lenta",
	}
	require.NoError(t, db.Create(quote).Error)
	return quote
}

func TestRepoClaimQuoteConditionalUpdate(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()
	quote := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusAwaitingDiagnosis)

	first := uuid.New()
	won, err := repo.ClaimQuote(context.Background(), quote.ID, first)
	require.NoError(t, err)
	assert.True(t, won)

	// Second claim must find zero matching rows.
	second := uuid.New()
	won, err = repo.ClaimQuote(context.Background(), quote.ID, second)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindQuote(context.Background(), workshopID, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedMechanicID)
	assert.Equal(t, first, *stored.AssignedMechanicID)
}

func TestRepoClaimQuoteRequiresAwaitingStatus(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	quote := seedRepoQuote(t, db, uuid.New(), 1, enums.QuoteStatusDraft)

	won, err := repo.ClaimQuote(context.Background(), quote.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRepoReassignIgnoresCurrentAssignment(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()
	quote := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusAwaitingDiagnosis)

	require.NoError(t, db.Model(&models.Quote{}).
		Where("id = ?", quote.ID).
		Update("assigned_mechanic_id", uuid.New()).Error)

	next := uuid.New()
	ok, err := repo.ReassignMechanic(context.Background(), quote.ID, next)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindQuote(context.Background(), workshopID, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedMechanicID)
	assert.Equal(t, next, *stored.AssignedMechanicID)
}

func TestRepoTransitionStatusMatchesFromOnly(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()
	quote := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusDraft)

	ok, err := repo.TransitionStatus(context.Background(), quote.ID, enums.QuoteStatusSent, enums.QuoteStatusViewed, nil)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not match")

	ok, err = repo.TransitionStatus(context.Background(), quote.ID, enums.QuoteStatusDraft, enums.QuoteStatusAwaitingDiagnosis, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindQuote(context.Background(), workshopID, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAwaitingDiagnosis, stored.Status)
}

func TestRepoUpdateQuoteStatusGated(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()

	diagnosed := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusDiagnosed)
	ok, err := repo.UpdateQuote(context.Background(), diagnosed.ID, pricingStatuses, map[string]any{
		"labor_cost": decimal.RequireFromString("150.00"),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A quote the customer already rejected must not take pricing writes.
	rejected := seedRepoQuote(t, db, workshopID, 2, enums.QuoteStatusRejected)
	ok, err = repo.UpdateQuote(context.Background(), rejected.ID, pricingStatuses, map[string]any{
		"labor_cost": decimal.RequireFromString("999.00"),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindQuote(context.Background(), workshopID, rejected.ID)
	require.NoError(t, err)
	assert.True(t, stored.LaborCost.IsZero())
}

func TestRepoDecideQuoteOnlyFromDecidableStatuses(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()

	sent := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusSent)
	ok, err := repo.DecideQuote(context.Background(), sent.ID, enums.QuoteStatusAccepted, map[string]any{
		"customer_signature": "Maria Silva",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A second decision on the same quote must find zero rows.
	ok, err = repo.DecideQuote(context.Background(), sent.ID, enums.QuoteStatusRejected, map[string]any{
		"rejection_reason": "muito caro",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	draft := seedRepoQuote(t, db, workshopID, 2, enums.QuoteStatusDraft)
	ok, err = repo.DecideQuote(context.Background(), draft.ID, enums.QuoteStatusAccepted, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepoNextQuoteNumberPerWorkshop(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopA := uuid.New()
	workshopB := uuid.New()

	seedRepoQuote(t, db, workshopA, 1, enums.QuoteStatusDraft)
	seedRepoQuote(t, db, workshopA, 2, enums.QuoteStatusDraft)

	next, err := repo.NextQuoteNumber(context.Background(), workshopA)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)

	next, err = repo.NextQuoteNumber(context.Background(), workshopB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestRepoListMechanicQuotes(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()
	mechanicID := uuid.New()

	open := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusAwaitingDiagnosis)

	mine := seedRepoQuote(t, db, workshopID, 2, enums.QuoteStatusDiagnosed)
	require.NoError(t, db.Model(&models.Quote{}).
		Where("id = ?", mine.ID).
		Update("assigned_mechanic_id", mechanicID).Error)

	foreign := seedRepoQuote(t, db, workshopID, 3, enums.QuoteStatusAwaitingDiagnosis)
	require.NoError(t, db.Model(&models.Quote{}).
		Where("id = ?", foreign.ID).
		Update("assigned_mechanic_id", uuid.New()).Error)

	list, err := repo.ListMechanicQuotes(context.Background(), workshopID, mechanicID, ListFilters{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []uuid.UUID{list[0].ID, list[1].ID}
	assert.Contains(t, ids, open.ID)
	assert.Contains(t, ids, mine.ID)
}

func TestRepoReplaceItems(t *testing.T) {
	db := setupQuotesTestDB(t)
	repo := NewRepository(db)
	workshopID := uuid.New()
	quote := seedRepoQuote(t, db, workshopID, 1, enums.QuoteStatusDiagnosed)

	first := []models.QuoteItem{
		{ID: uuid.New(), QuoteID: quote.ID, Type: enums.QuoteItemTypePart, Name: "vela de ignicao", Quantity: 4, UnitCost: decimal.RequireFromString("18.00"), TotalCost: decimal.RequireFromString("72.00")},
	}
	require.NoError(t, repo.ReplaceItems(context.Background(), quote.ID, first))

	second := []models.QuoteItem{
		{ID: uuid.New(), QuoteID: quote.ID, Type: enums.QuoteItemTypeService, Name: "limpeza de bicos", Quantity: 1, UnitCost: decimal.RequireFromString("120.00"), TotalCost: decimal.RequireFromString("120.00")},
		{ID: uuid.New(), QuoteID: quote.ID, Type: enums.QuoteItemTypePart, Name: "filtro de combustivel", Quantity: 1, UnitCost: decimal.RequireFromString("45.00"), TotalCost: decimal.RequireFromString("45.00")},
	}
	require.NoError(t, repo.ReplaceItems(context.Background(), quote.ID, second))

	stored, err := repo.FindQuote(context.Background(), workshopID, quote.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}
