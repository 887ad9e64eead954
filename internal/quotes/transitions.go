package quotes

import (
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
)

// transitionTable is the closed set of legal status moves. Every status
// write in this package goes through CheckTransition plus a conditional
// UPDATE; nothing else may assign the status column.
var transitionTable = map[enums.QuoteStatus][]enums.QuoteStatus{
	enums.QuoteStatusDraft:             {enums.QuoteStatusAwaitingDiagnosis},
	enums.QuoteStatusAwaitingDiagnosis: {enums.QuoteStatusDiagnosed},
	enums.QuoteStatusDiagnosed:         {enums.QuoteStatusSent},
	enums.QuoteStatusSent:              {enums.QuoteStatusViewed, enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusExpired},
	enums.QuoteStatusViewed:            {enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusExpired},
	enums.QuoteStatusAccepted:          {enums.QuoteStatusConverted},
}

// CanTransition reports whether from → to is in the legal table.
func CanTransition(from, to enums.QuoteStatus) bool {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a typed error carrying the current and
// attempted status when the move is not legal.
func CheckTransition(from, to enums.QuoteStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition disallowed").
		WithDetails(map[string]any{
			"current":   from.String(),
			"attempted": to.String(),
		})
}

// decidableStatuses are the statuses from which a customer decision
// (accept/reject) or lazy expiry may depart.
var decidableStatuses = []enums.QuoteStatus{
	enums.QuoteStatusSent,
	enums.QuoteStatusViewed,
}
