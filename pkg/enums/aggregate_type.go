package enums

import "fmt"

// AggregateType names the unit of consistency an event belongs to. Item is the
// only aggregate the catalog manages today.
type AggregateType string

const (
	AggregateTypeItem AggregateType = "Item"
)

var validAggregateTypes = []AggregateType{
	AggregateTypeItem,
}

// String implements fmt.Stringer.
func (t AggregateType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AggregateType.
func (t AggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAggregateType converts raw input into an AggregateType.
func ParseAggregateType(value string) (AggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}
