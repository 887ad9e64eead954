package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/internal/directory"
	"github.com/oficinahub/oficina-backend/internal/serviceorders"
	"github.com/oficinahub/oficina-backend/pkg/auth/quotelink"
	"github.com/oficinahub/oficina-backend/pkg/config"
	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
	"github.com/oficinahub/oficina-backend/pkg/metrics"
	"github.com/oficinahub/oficina-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the quote lifecycle. Every operation takes the caller as
// an explicit Actor and resolves races with conditional writes.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateQuoteInput) (*models.Quote, error)
	Get(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, actor Actor, filters ListFilters) ([]models.Quote, error)
	Update(ctx context.Context, actor Actor, quoteID uuid.UUID, input UpdateQuoteInput) (*models.Quote, error)
	Submit(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error)
	Claim(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error)
	Reassign(ctx context.Context, actor Actor, quoteID, mechanicID uuid.UUID) (*models.Quote, error)
	Diagnose(ctx context.Context, actor Actor, quoteID uuid.UUID, input DiagnoseInput) (*models.Quote, error)
	Send(ctx context.Context, actor Actor, quoteID uuid.UUID, input SendInput) (*SendResult, error)
	Convert(ctx context.Context, actor Actor, quoteID uuid.UUID) (*DecisionResult, error)

	ViewByToken(ctx context.Context, token string) (*PublicQuoteView, error)
	ApproveByToken(ctx context.Context, token, signature string) (*DecisionResult, error)
	RejectByToken(ctx context.Context, token, reason string) (*models.Quote, error)
}

type service struct {
	repo     Repository
	orders   serviceorders.Repository
	dir      directory.Repository
	tx       txRunner
	link     config.QuoteLinkConfig
	workflow *metrics.WorkflowMetrics
}

// NewService builds the quote workflow service with its dependencies.
// The metrics collector may be nil.
func NewService(repo Repository, orders serviceorders.Repository, dir directory.Repository, tx txRunner, link config.QuoteLinkConfig, workflow *metrics.WorkflowMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("service order repository required")
	}
	if dir == nil {
		return nil, fmt.Errorf("directory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if link.Secret == "" {
		return nil, fmt.Errorf("quote link secret required")
	}
	return &service{
		repo:     repo,
		orders:   orders,
		dir:      dir,
		tx:       tx,
		link:     link,
		workflow: workflow,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateQuoteInput) (*models.Quote, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !input.ProblemCategory.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid problem category")
	}
	if input.ProblemDescription == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "problem description required")
	}

	customer, err := s.dir.FindCustomer(ctx, actor.WorkshopID, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown customer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	vehicle, err := s.dir.FindVehicle(ctx, actor.WorkshopID, input.VehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown vehicle")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	if vehicle.CustomerID != customer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle does not belong to customer")
	}
	if input.ServiceBayID != nil {
		if _, err := s.dir.FindServiceBay(ctx, actor.WorkshopID, *input.ServiceBayID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown service bay")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service bay")
		}
	}

	var created *models.Quote
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := repo.NextQuoteNumber(ctx, actor.WorkshopID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate quote number")
		}
		quote := &models.Quote{
			WorkshopID:         actor.WorkshopID,
			Number:             number,
			Status:             enums.QuoteStatusDraft,
			CustomerID:         customer.ID,
			VehicleID:          vehicle.ID,
			ServiceBayID:       input.ServiceBayID,
			ProblemCategory:    input.ProblemCategory,
			ProblemDescription: input.ProblemDescription,
			Symptoms:           types.StringList(input.Symptoms),
		}
		created, err = repo.CreateQuote(ctx, quote)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, quote) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return quote, nil
}

func (s *service) List(ctx context.Context, actor Actor, filters ListFilters) ([]models.Quote, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role == enums.MemberRoleMechanic {
		list, err := s.repo.ListMechanicQuotes(ctx, actor.WorkshopID, actor.UserID, filters)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
		}
		return list, nil
	}
	list, err := s.repo.ListQuotes(ctx, actor.WorkshopID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, actor Actor, quoteID uuid.UUID, input UpdateQuoteInput) (*models.Quote, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, quote) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}

	updates := map[string]any{}
	var gate struct {
		allowed  []enums.QuoteStatus
		field    string
		required string
	}

	if input.ProblemCategory != nil || input.ProblemDescription != nil || input.Symptoms != nil || input.ServiceBayID != nil {
		if !reportedProblemWritable(quote.Status) {
			return nil, errFieldLocked("reported_problem", quote.Status, reportedProblemRequired)
		}
		gate.allowed, gate.field, gate.required = reportedProblemStatuses, "reported_problem", reportedProblemRequired
		if input.ProblemCategory != nil {
			if !input.ProblemCategory.IsValid() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid problem category")
			}
			updates["problem_category"] = *input.ProblemCategory
		}
		if input.ProblemDescription != nil {
			if *input.ProblemDescription == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "problem description required")
			}
			updates["problem_description"] = *input.ProblemDescription
		}
		if input.Symptoms != nil {
			updates["symptoms"] = types.StringList(*input.Symptoms)
		}
		if input.ServiceBayID != nil {
			updates["service_bay_id"] = *input.ServiceBayID
		}
	}

	pricingTouched := input.Items != nil || input.LaborCost != nil || input.PartsCost != nil || input.Discount != nil || input.Tax != nil
	var newItems []models.QuoteItem
	if pricingTouched {
		if !pricingWritable(quote.Status) {
			return nil, errFieldLocked("pricing", quote.Status, pricingRequired)
		}
		gate.allowed, gate.field, gate.required = pricingStatuses, "pricing", pricingRequired

		labor, parts, discount, tax := quote.LaborCost, quote.PartsCost, quote.Discount, quote.Tax
		if input.LaborCost != nil {
			labor = *input.LaborCost
			updates["labor_cost"] = labor
		}
		if input.PartsCost != nil {
			parts = *input.PartsCost
			updates["parts_cost"] = parts
		}
		if input.Discount != nil {
			discount = *input.Discount
			updates["discount"] = discount
		}
		if input.Tax != nil {
			tax = *input.Tax
			updates["tax"] = tax
		}

		items := quote.Items
		if input.Items != nil {
			newItems, err = buildItems(quote.ID, *input.Items)
			if err != nil {
				return nil, err
			}
			items = newItems
		}
		updates["grand_total"] = GrandTotal(items, labor, parts, discount, tax)
	}

	if len(updates) == 0 && input.Items == nil {
		return quote, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.Items != nil {
			if err := repo.ReplaceItems(ctx, quote.ID, newItems); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace quote items")
			}
		}
		ok, err := repo.UpdateQuote(ctx, quote.ID, gate.allowed, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote")
		}
		if !ok {
			// The status moved between the gate check and the write,
			// e.g. a customer decision landed. Surface the lock instead
			// of writing onto a closed quote.
			current, ferr := repo.FindQuoteByID(ctx, quote.ID)
			if ferr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "reload quote")
			}
			return errFieldLocked(gate.field, current.Status, gate.required)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadQuote(ctx, actor.WorkshopID, quoteID)
}

func (s *service) Submit(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error) {
	if err := requireRole(actor, enums.MemberRoleManager, enums.MemberRoleStaff); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(quote.Status, enums.QuoteStatusAwaitingDiagnosis); err != nil {
		return nil, err
	}

	ok, err := s.repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusDraft, enums.QuoteStatusAwaitingDiagnosis, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit quote")
	}
	if !ok {
		return nil, s.transitionConflict(ctx, actor.WorkshopID, quote.ID, enums.QuoteStatusAwaitingDiagnosis)
	}
	s.workflow.ObserveTransition(enums.QuoteStatusDraft.String(), enums.QuoteStatusAwaitingDiagnosis.String())

	return s.loadQuote(ctx, actor.WorkshopID, quoteID)
}

func (s *service) Claim(ctx context.Context, actor Actor, quoteID uuid.UUID) (*models.Quote, error) {
	if err := requireRole(actor, enums.MemberRoleMechanic); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != enums.QuoteStatusAwaitingDiagnosis {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is not awaiting diagnosis").
			WithDetails(map[string]any{
				"current":  quote.Status.String(),
				"required": enums.QuoteStatusAwaitingDiagnosis.String(),
			})
	}
	if quote.AssignedMechanicID != nil && *quote.AssignedMechanicID == actor.UserID {
		// Idempotent re-claim.
		return quote, nil
	}

	won, err := s.repo.ClaimQuote(ctx, quote.ID, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim quote")
	}
	if !won {
		s.workflow.ObserveClaim("lost")
		current, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
		if err != nil {
			return nil, err
		}
		if current.AssignedMechanicID != nil && *current.AssignedMechanicID == actor.UserID {
			return current, nil
		}
		if current.Status != enums.QuoteStatusAwaitingDiagnosis {
			// Lost to a status change, not to another claimant.
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is not awaiting diagnosis").
				WithDetails(map[string]any{
					"current":  current.Status.String(),
					"required": enums.QuoteStatusAwaitingDiagnosis.String(),
				})
		}
		details := map[string]any{"current": current.Status.String()}
		if current.AssignedMechanicID != nil {
			details["assigned_mechanic_id"] = current.AssignedMechanicID.String()
		}
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyClaimed, "quote already claimed by another mechanic").
			WithDetails(details)
	}
	s.workflow.ObserveClaim("won")

	return s.loadQuote(ctx, actor.WorkshopID, quoteID)
}

func (s *service) Reassign(ctx context.Context, actor Actor, quoteID, mechanicID uuid.UUID) (*models.Quote, error) {
	if err := requireRole(actor, enums.MemberRoleManager); err != nil {
		return nil, err
	}
	if mechanicID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mechanic id required")
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.ReassignMechanic(ctx, quote.ID, mechanicID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign mechanic")
	}
	if !ok {
		current, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is not awaiting diagnosis").
			WithDetails(map[string]any{
				"current":  current.Status.String(),
				"required": enums.QuoteStatusAwaitingDiagnosis.String(),
			})
	}

	return s.loadQuote(ctx, actor.WorkshopID, quoteID)
}

func (s *service) Diagnose(ctx context.Context, actor Actor, quoteID uuid.UUID, input DiagnoseInput) (*models.Quote, error) {
	if err := requireRole(actor, enums.MemberRoleMechanic); err != nil {
		return nil, err
	}
	if !input.IdentifiedCategory.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identified category")
	}
	if input.IdentifiedDescription == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identified description required")
	}

	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(quote.Status, enums.QuoteStatusDiagnosed); err != nil {
		return nil, err
	}
	if quote.AssignedMechanicID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotAssigned, "quote has no assigned mechanic")
	}
	if *quote.AssignedMechanicID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotOwner, "quote is assigned to another mechanic").
			WithDetails(map[string]any{"assigned_mechanic_id": quote.AssignedMechanicID.String()})
	}

	now := time.Now().UTC()
	ok, err := s.repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusAwaitingDiagnosis, enums.QuoteStatusDiagnosed, map[string]any{
		"identified_category":    input.IdentifiedCategory,
		"identified_description": input.IdentifiedDescription,
		"diagnostic_notes":       input.DiagnosticNotes,
		"recommendations":        input.Recommendations,
		"diagnosed_at":           now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record diagnosis")
	}
	if !ok {
		return nil, s.transitionConflict(ctx, actor.WorkshopID, quote.ID, enums.QuoteStatusDiagnosed)
	}
	s.workflow.ObserveTransition(enums.QuoteStatusAwaitingDiagnosis.String(), enums.QuoteStatusDiagnosed.String())

	return s.loadQuote(ctx, actor.WorkshopID, quoteID)
}

func (s *service) Send(ctx context.Context, actor Actor, quoteID uuid.UUID, input SendInput) (*SendResult, error) {
	if err := requireRole(actor, enums.MemberRoleManager, enums.MemberRoleStaff); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(quote.Status, enums.QuoteStatusSent); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	validUntil := now.Add(s.link.DefaultValidity)
	if input.ValidUntil != nil {
		validUntil = input.ValidUntil.UTC()
	}
	if !validUntil.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be in the future")
	}

	token, err := quotelink.Mint(s.link, now, quote.ID, quote.WorkshopID, validUntil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint quote link token")
	}

	ok, err := s.repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusDiagnosed, enums.QuoteStatusSent, map[string]any{
		"sent_at":     now,
		"valid_until": validUntil,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send quote")
	}
	if !ok {
		return nil, s.transitionConflict(ctx, actor.WorkshopID, quote.ID, enums.QuoteStatusSent)
	}
	s.workflow.ObserveTransition(enums.QuoteStatusDiagnosed.String(), enums.QuoteStatusSent.String())

	sent, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	return &SendResult{Quote: sent, Token: token, ValidUntil: validUntil}, nil
}

func (s *service) Convert(ctx context.Context, actor Actor, quoteID uuid.UUID) (*DecisionResult, error) {
	if err := requireRole(actor, enums.MemberRoleManager, enums.MemberRoleStaff); err != nil {
		return nil, err
	}
	quote, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}

	// No-op success when the quote is already linked to an order.
	if quote.Status == enums.QuoteStatusConverted {
		order, err := s.orders.FindByQuoteID(ctx, quote.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order")
		}
		return &DecisionResult{Quote: quote, ServiceOrder: order}, nil
	}
	if err := CheckTransition(quote.Status, enums.QuoteStatusConverted); err != nil {
		return nil, err
	}

	var order *models.ServiceOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txOrders := s.orders.WithTx(tx)

		existing, err := txOrders.FindByQuoteID(ctx, quote.ID)
		switch {
		case err == nil:
			// Earlier conversion attempt wrote the order but failed to
			// flip the status; finish the link.
			order = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			order, err = s.createOrderFromQuote(ctx, txOrders, quote)
			if err != nil {
				return err
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order")
		}

		ok, err := repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusAccepted, enums.QuoteStatusConverted, map[string]any{
			"service_order_id": order.ID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark quote converted")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "quote left accepted state during conversion")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.workflow.ObserveTransition(enums.QuoteStatusAccepted.String(), enums.QuoteStatusConverted.String())
	s.workflow.IncConversion()

	converted, err := s.loadQuote(ctx, actor.WorkshopID, quoteID)
	if err != nil {
		return nil, err
	}
	return &DecisionResult{Quote: converted, ServiceOrder: order}, nil
}

func (s *service) ViewByToken(ctx context.Context, token string) (*PublicQuoteView, error) {
	quote, err := s.loadQuoteByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if expired, err := s.lazyExpire(ctx, quote); err != nil {
		return nil, err
	} else if expired {
		return &PublicQuoteView{Status: enums.QuoteStatusExpired}, nil
	}
	if quote.Status == enums.QuoteStatusExpired {
		return &PublicQuoteView{Status: enums.QuoteStatusExpired}, nil
	}

	if quote.Status == enums.QuoteStatusSent {
		// First successful view flips SENT → VIEWED; a concurrent view
		// losing this write is fine, the quote is viewed either way.
		ok, err := s.repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusSent, enums.QuoteStatusViewed, map[string]any{
			"viewed_at": time.Now().UTC(),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark quote viewed")
		}
		if ok {
			s.workflow.ObserveTransition(enums.QuoteStatusSent.String(), enums.QuoteStatusViewed.String())
		}
		quote, err = s.repo.FindQuoteByID(ctx, quote.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload quote")
		}
	}

	return &PublicQuoteView{Status: quote.Status, Quote: quote}, nil
}

func (s *service) ApproveByToken(ctx context.Context, token, signature string) (*DecisionResult, error) {
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature required")
	}
	quote, err := s.loadQuoteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.checkDecidable(ctx, quote); err != nil {
		return nil, err
	}
	previous := quote.Status

	var order *models.ServiceOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txOrders := s.orders.WithTx(tx)
		now := time.Now().UTC()

		decided, err := repo.DecideQuote(ctx, quote.ID, enums.QuoteStatusAccepted, map[string]any{
			"customer_signature": signature,
			"decided_at":         now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept quote")
		}
		if !decided {
			return s.decisionConflict(ctx, repo, quote.ID)
		}

		order, err = s.createOrderFromQuote(ctx, txOrders, quote)
		if err != nil {
			return err
		}

		converted, err := repo.TransitionStatus(ctx, quote.ID, enums.QuoteStatusAccepted, enums.QuoteStatusConverted, map[string]any{
			"service_order_id": order.ID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark quote converted")
		}
		if !converted {
			return pkgerrors.New(pkgerrors.CodeConflict, "quote left accepted state during conversion")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.workflow.ObserveTransition(previous.String(), enums.QuoteStatusAccepted.String())
	s.workflow.ObserveTransition(enums.QuoteStatusAccepted.String(), enums.QuoteStatusConverted.String())
	s.workflow.IncConversion()

	converted, err := s.repo.FindQuoteByID(ctx, quote.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload quote")
	}
	return &DecisionResult{Quote: converted, ServiceOrder: order}, nil
}

func (s *service) RejectByToken(ctx context.Context, token, reason string) (*models.Quote, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	quote, err := s.loadQuoteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.checkDecidable(ctx, quote); err != nil {
		return nil, err
	}
	previous := quote.Status

	decided, err := s.repo.DecideQuote(ctx, quote.ID, enums.QuoteStatusRejected, map[string]any{
		"rejection_reason": reason,
		"decided_at":       time.Now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject quote")
	}
	if !decided {
		return nil, s.decisionConflict(ctx, s.repo, quote.ID)
	}
	s.workflow.ObserveTransition(previous.String(), enums.QuoteStatusRejected.String())

	rejected, err := s.repo.FindQuoteByID(ctx, quote.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload quote")
	}
	return rejected, nil
}

// loadQuoteByToken collapses every token or lookup problem into the
// single public-channel rejection.
func (s *service) loadQuoteByToken(ctx context.Context, token string) (*models.Quote, error) {
	claims, err := quotelink.Verify(s.link, token)
	if err != nil {
		return nil, err
	}
	quote, err := s.repo.FindQuoteByID(ctx, claims.QuoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	if quote.WorkshopID != claims.WorkshopID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired")
	}
	return quote, nil
}

// lazyExpire applies the EXPIRED transition when the validity window
// has elapsed. Returns true when the quote is now expired.
func (s *service) lazyExpire(ctx context.Context, quote *models.Quote) (bool, error) {
	if quote.ValidUntil == nil || time.Now().UTC().Before(*quote.ValidUntil) {
		return false, nil
	}
	if !CanTransition(quote.Status, enums.QuoteStatusExpired) {
		return false, nil
	}
	ok, err := s.repo.TransitionStatus(ctx, quote.ID, quote.Status, enums.QuoteStatusExpired, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire quote")
	}
	if ok {
		s.workflow.ObserveTransition(quote.Status.String(), enums.QuoteStatusExpired.String())
		return true, nil
	}
	// Lost the race; report expired only if another request expired it.
	current, err := s.repo.FindQuoteByID(ctx, quote.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload quote")
	}
	*quote = *current
	return current.Status == enums.QuoteStatusExpired, nil
}

// checkDecidable rejects decisions on quotes that are expired, already
// decided, or not yet customer-facing.
func (s *service) checkDecidable(ctx context.Context, quote *models.Quote) error {
	if expired, err := s.lazyExpire(ctx, quote); err != nil {
		return err
	} else if expired || quote.Status == enums.QuoteStatusExpired {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired")
	}
	switch quote.Status {
	case enums.QuoteStatusSent, enums.QuoteStatusViewed:
		return nil
	case enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusConverted:
		return pkgerrors.New(pkgerrors.CodeAlreadyDecided, "quote has already been decided").
			WithDetails(map[string]any{"current": quote.Status.String()})
	default:
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is not open for decision").
			WithDetails(map[string]any{"current": quote.Status.String()})
	}
}

// decisionConflict maps a lost decide race to the right typed error.
func (s *service) decisionConflict(ctx context.Context, repo Repository, quoteID uuid.UUID) error {
	current, err := repo.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload quote")
	}
	switch current.Status {
	case enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusConverted:
		return pkgerrors.New(pkgerrors.CodeAlreadyDecided, "quote has already been decided").
			WithDetails(map[string]any{"current": current.Status.String()})
	case enums.QuoteStatusExpired:
		return pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired")
	default:
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "quote is not open for decision").
			WithDetails(map[string]any{"current": current.Status.String()})
	}
}

// createOrderFromQuote snapshots the quote into a new service order.
func (s *service) createOrderFromQuote(ctx context.Context, orders serviceorders.Repository, quote *models.Quote) (*models.ServiceOrder, error) {
	number, err := orders.NextNumber(ctx, quote.WorkshopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	snapshot := make(types.QuoteItemSnapshotList, 0, len(quote.Items))
	for _, item := range quote.Items {
		snapshot = append(snapshot, types.QuoteItemSnapshot{
			Type:      item.Type.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			TotalCost: ItemTotal(item.Quantity, item.UnitCost),
		})
	}

	order := &models.ServiceOrder{
		WorkshopID:            quote.WorkshopID,
		Number:                number,
		QuoteID:               quote.ID,
		CustomerID:            quote.CustomerID,
		VehicleID:             quote.VehicleID,
		IdentifiedCategory:    quote.IdentifiedCategory,
		IdentifiedDescription: quote.IdentifiedDescription,
		Items:                 snapshot,
		LaborCost:             quote.LaborCost,
		PartsCost:             quote.PartsCost,
		Discount:              quote.Discount,
		Tax:                   quote.Tax,
		TotalCost:             GrandTotal(quote.Items, quote.LaborCost, quote.PartsCost, quote.Discount, quote.Tax),
	}
	created, err := orders.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create service order")
	}
	return created, nil
}

func (s *service) loadQuote(ctx context.Context, workshopID, quoteID uuid.UUID) (*models.Quote, error) {
	quote, err := s.repo.FindQuote(ctx, workshopID, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	return quote, nil
}

// transitionConflict reloads after a lost conditional update and builds
// the invalid-transition error from the fresh status.
func (s *service) transitionConflict(ctx context.Context, workshopID, quoteID uuid.UUID, attempted enums.QuoteStatus) error {
	current, err := s.loadQuote(ctx, workshopID, quoteID)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition disallowed").
		WithDetails(map[string]any{
			"current":   current.Status.String(),
			"attempted": attempted.String(),
		})
}

func buildItems(quoteID uuid.UUID, inputs []ItemInput) ([]models.QuoteItem, error) {
	items := make([]models.QuoteItem, 0, len(inputs))
	for _, input := range inputs {
		if !input.Type.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item type")
		}
		if input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
		}
		if input.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if input.UnitCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit cost must not be negative")
		}
		items = append(items, models.QuoteItem{
			QuoteID:  quoteID,
			Type:     input.Type,
			Name:     input.Name,
			Quantity: input.Quantity,
			UnitCost: input.UnitCost,
		})
	}
	normalizeItems(items)
	return items, nil
}

func requireActor(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.WorkshopID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "workshop context missing")
	}
	return nil
}

func requireRole(actor Actor, roles ...enums.MemberRole) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed for this operation")
}

// visibleTo applies the mechanic visibility rule: unassigned quotes in
// the diagnosis queue are open to every mechanic, assigned quotes only
// to their owner. Staff and managers see everything in their workshop.
func visibleTo(actor Actor, quote *models.Quote) bool {
	if actor.Role != enums.MemberRoleMechanic {
		return true
	}
	if quote.AssignedMechanicID == nil {
		return true
	}
	return *quote.AssignedMechanicID == actor.UserID
}
