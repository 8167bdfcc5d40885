package corals

import "github.com/coraldesk/coraldesk-backend/pkg/enums"

// ComputeStatus derives the stock status from a quantity and its minimum
// threshold. Services call this before every save; the column is never
// recomputed implicitly by the persistence layer.
func ComputeStatus(quantity, minimumStock int) enums.CoralStockStatus {
	switch {
	case quantity <= 0:
		return enums.CoralStockStatusOutOfStock
	case quantity <= minimumStock:
		return enums.CoralStockStatusLowStock
	default:
		return enums.CoralStockStatusAvailable
	}
}
