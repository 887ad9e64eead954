package quotes

import (
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
)

// Reported-problem fields close once a mechanic takes over; pricing
// fields only open after the diagnosis gate and close at conversion.

var reportedProblemStatuses = []enums.QuoteStatus{
	enums.QuoteStatusDraft,
	enums.QuoteStatusAwaitingDiagnosis,
}

var pricingStatuses = []enums.QuoteStatus{
	enums.QuoteStatusDiagnosed,
	enums.QuoteStatusSent,
	enums.QuoteStatusViewed,
	enums.QuoteStatusAccepted,
}

func reportedProblemWritable(status enums.QuoteStatus) bool {
	return statusIn(status, reportedProblemStatuses)
}

func pricingWritable(status enums.QuoteStatus) bool {
	return statusIn(status, pricingStatuses)
}

func statusIn(status enums.QuoteStatus, set []enums.QuoteStatus) bool {
	for _, candidate := range set {
		if status == candidate {
			return true
		}
	}
	return false
}

func errFieldLocked(field string, current enums.QuoteStatus, required string) error {
	return pkgerrors.New(pkgerrors.CodeFieldLocked, "field not writable in current status").
		WithDetails(map[string]any{
			"field":    field,
			"current":  current.String(),
			"required": required,
		})
}

const (
	reportedProblemRequired = "draft or awaiting_diagnosis"
	pricingRequired         = "diagnosed, sent, viewed or accepted"
)
