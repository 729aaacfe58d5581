package repositories

import "fmt"

// StockErrorCode classifies business-rule failures of the creation transaction.
type StockErrorCode string

const (
	// StockErrorInsufficient indicates the requested quantity exceeds availability.
	StockErrorInsufficient StockErrorCode = "insufficient_stock"
	// StockErrorProductNotFound indicates a referenced product does not exist.
	StockErrorProductNotFound StockErrorCode = "product_not_found"
)

// StockError reports why the order-creation transaction rejected a line item.
type StockError struct {
	Code      StockErrorCode
	ProductID string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *StockError) Error() string {
	switch e.Code {
	case StockErrorInsufficient:
		return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
	case StockErrorProductNotFound:
		return fmt.Sprintf("product %s not found", e.ProductID)
	default:
		return fmt.Sprintf("stock error for product %s", e.ProductID)
	}
}

// NewInsufficientStockError constructs a StockError for an oversell attempt.
func NewInsufficientStockError(productID string, requested, available int) *StockError {
	return &StockError{
		Code:      StockErrorInsufficient,
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

// NewProductNotFoundError constructs a StockError for a missing product.
func NewProductNotFoundError(productID string) *StockError {
	return &StockError{
		Code:      StockErrorProductNotFound,
		ProductID: productID,
	}
}
