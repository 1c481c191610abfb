package domain

import "fmt"

// InsufficientStockError reports a cart line that asked for more units than
// the product has. It carries the product name and the available quantity so
// the cashier sees exactly which item blocked the sale.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

// InvalidAdjustmentError reports a manual stock delta that would take the
// product below zero.
type InvalidAdjustmentError struct {
	ProductID   string
	ProductName string
	Current     int
	Change      int
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("adjustment of %+d rejected for %q: current stock is %d", e.Change, e.ProductName, e.Current)
}
