package enums

import "fmt"

// QuoteItemType distinguishes labor services from replacement parts.
type QuoteItemType string

const (
	QuoteItemTypeService QuoteItemType = "service"
	QuoteItemTypePart    QuoteItemType = "part"
)

var validQuoteItemTypes = []QuoteItemType{
	QuoteItemTypeService,
	QuoteItemTypePart,
}

// String implements fmt.Stringer.
func (q QuoteItemType) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteItemType.
func (q QuoteItemType) IsValid() bool {
	for _, candidate := range validQuoteItemTypes {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuoteItemType converts raw input into a QuoteItemType.
func ParseQuoteItemType(value string) (QuoteItemType, error) {
	for _, candidate := range validQuoteItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote item type %q", value)
}
