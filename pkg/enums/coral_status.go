package enums

import "fmt"

// CoralStockStatus is the derived availability state of a coral record.
type CoralStockStatus string

const (
	CoralStockStatusAvailable  CoralStockStatus = "available"
	CoralStockStatusLowStock   CoralStockStatus = "low_stock"
	CoralStockStatusOutOfStock CoralStockStatus = "out_of_stock"
)

// String implements fmt.Stringer.
func (s CoralStockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CoralStockStatus.
func (s CoralStockStatus) IsValid() bool {
	switch s {
	case CoralStockStatusAvailable, CoralStockStatusLowStock, CoralStockStatusOutOfStock:
		return true
	}
	return false
}

// ParseCoralStockStatus converts a raw string into a CoralStockStatus.
func ParseCoralStockStatus(value string) (CoralStockStatus, error) {
	status := CoralStockStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid coral stock status %q", value)
	}
	return status, nil
}
