package quotes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
)

// Repository defines persistence operations for the quote tables. The
// conditional mutators return whether a row matched so callers can
// branch on lost races instead of reading then writing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateQuote(ctx context.Context, quote *models.Quote) (*models.Quote, error)
	FindQuote(ctx context.Context, workshopID, quoteID uuid.UUID) (*models.Quote, error)
	FindQuoteByID(ctx context.Context, quoteID uuid.UUID) (*models.Quote, error)
	ListQuotes(ctx context.Context, workshopID uuid.UUID, filters ListFilters) ([]models.Quote, error)
	ListMechanicQuotes(ctx context.Context, workshopID, mechanicID uuid.UUID, filters ListFilters) ([]models.Quote, error)
	NextQuoteNumber(ctx context.Context, workshopID uuid.UUID) (int64, error)

	// UpdateQuote applies the column writes iff the row still holds one
	// of the allowed statuses; false means the gate moved underneath.
	UpdateQuote(ctx context.Context, quoteID uuid.UUID, allowed []enums.QuoteStatus, updates map[string]any) (bool, error)
	ReplaceItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error

	// ClaimQuote sets the mechanic iff the quote is awaiting diagnosis
	// and unassigned (single conditional UPDATE).
	ClaimQuote(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error)
	// ReassignMechanic is the administrative override; it only requires
	// the quote to still be awaiting diagnosis.
	ReassignMechanic(ctx context.Context, quoteID, mechanicID uuid.UUID) (bool, error)
	// TransitionStatus applies from → to plus the extra column writes
	// iff the row still holds from.
	TransitionStatus(ctx context.Context, quoteID uuid.UUID, from, to enums.QuoteStatus, updates map[string]any) (bool, error)
	// DecideQuote applies a customer decision iff the row is still in a
	// decidable status (sent or viewed).
	DecideQuote(ctx context.Context, quoteID uuid.UUID, to enums.QuoteStatus, updates map[string]any) (bool, error)
}
