package enums

import "fmt"

// QuoteStatus tracks the lifecycle of a repair quote.
type QuoteStatus string

const (
	QuoteStatusDraft             QuoteStatus = "draft"
	QuoteStatusAwaitingDiagnosis QuoteStatus = "awaiting_diagnosis"
	QuoteStatusDiagnosed         QuoteStatus = "diagnosed"
	QuoteStatusSent              QuoteStatus = "sent"
	QuoteStatusViewed            QuoteStatus = "viewed"
	QuoteStatusAccepted          QuoteStatus = "accepted"
	QuoteStatusRejected          QuoteStatus = "rejected"
	QuoteStatusExpired           QuoteStatus = "expired"
	QuoteStatusConverted         QuoteStatus = "converted"
)

var validQuoteStatuses = []QuoteStatus{
	QuoteStatusDraft,
	QuoteStatusAwaitingDiagnosis,
	QuoteStatusDiagnosed,
	QuoteStatusSent,
	QuoteStatusViewed,
	QuoteStatusAccepted,
	QuoteStatusRejected,
	QuoteStatusExpired,
	QuoteStatusConverted,
}

// String implements fmt.Stringer.
func (q QuoteStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteStatus.
func (q QuoteStatus) IsValid() bool {
	for _, candidate := range validQuoteStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (q QuoteStatus) IsTerminal() bool {
	switch q {
	case QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted:
		return true
	default:
		return false
	}
}

// ParseQuoteStatus converts raw input into a QuoteStatus.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	for _, candidate := range validQuoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote status %q", value)
}
