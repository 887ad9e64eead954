package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quote repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateQuote(ctx context.Context, quote *models.Quote) (*models.Quote, error) {
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, err
	}
	return quote, nil
}

func (r *repository) FindQuote(ctx context.Context, workshopID, quoteID uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("workshop_id = ? AND id = ?", workshopID, quoteID).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) FindQuoteByID(ctx context.Context, quoteID uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", quoteID).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) ListQuotes(ctx context.Context, workshopID uuid.UUID, filters ListFilters) ([]models.Quote, error) {
	var quotes []models.Quote
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("workshop_id = ?", workshopID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	query = applyPage(query, filters)
	if err := query.Order("number DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

// ListMechanicQuotes returns the mechanic's queue: unassigned quotes
// awaiting diagnosis plus everything already assigned to them.
func (r *repository) ListMechanicQuotes(ctx context.Context, workshopID, mechanicID uuid.UUID, filters ListFilters) ([]models.Quote, error) {
	var quotes []models.Quote
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("workshop_id = ?", workshopID).
		Where(
			r.db.Where("status = ? AND assigned_mechanic_id IS NULL", enums.QuoteStatusAwaitingDiagnosis).
				Or("assigned_mechanic_id = ?", mechanicID),
		)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	query = applyPage(query, filters)
	if err := query.Order("number DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func applyPage(query *gorm.DB, filters ListFilters) *gorm.DB {
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

// NextQuoteNumber allocates the next per-workshop sequence value. The
// unique index on (workshop_id, number) backstops concurrent intakes.
func (r *repository) NextQuoteNumber(ctx context.Context, workshopID uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("workshop_id = ?", workshopID).
		Select("COALESCE(MAX(number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repository) UpdateQuote(ctx context.Context, quoteID uuid.UUID, allowed []enums.QuoteStatus, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return true, nil
	}
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status IN ?", quoteID, allowed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReplaceItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error {
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Delete(&models.QuoteItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ClaimQuote(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ? AND assigned_mechanic_id IS NULL",
			quoteID, enums.QuoteStatusAwaitingDiagnosis).
		Updates(map[string]any{
			"assigned_mechanic_id": mechanicID,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReassignMechanic(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", quoteID, enums.QuoteStatusAwaitingDiagnosis).
		Updates(map[string]any{
			"assigned_mechanic_id": mechanicID,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) TransitionStatus(ctx context.Context, quoteID uuid.UUID, from, to enums.QuoteStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", quoteID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DecideQuote(ctx context.Context, quoteID uuid.UUID, to enums.QuoteStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status IN ?", quoteID, decidableStatuses).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
