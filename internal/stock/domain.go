// Package stock tracks quantities on hand per point and product and the
// product catalogue learned from receipts.
package stock

import (
	"errors"
	"fmt"
	"time"
)

// Operation enumerates stock adjustments.
type Operation string

const (
	// OpAdd increases the quantity on hand.
	OpAdd Operation = "add"
	// OpSubtract decreases it and never goes below zero.
	OpSubtract Operation = "subtract"
	// OpSet overwrites it.
	OpSet Operation = "set"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpAdd, OpSubtract, OpSet:
		return true
	}
	return false
}

// Level is the quantity of one product at one point.
type Level struct {
	Point     string    `json:"point"`
	Product   string    `json:"product"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Movement records one applied operation.
type Movement struct {
	ID        int64     `json:"id"`
	Point     string    `json:"point"`
	Product   string    `json:"product"`
	Op        Operation `json:"op"`
	Quantity  int64     `json:"quantity"`
	Before    int64     `json:"before"`
	After     int64     `json:"after"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalogue entry.
type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AdjustInput asks for one operation.
type AdjustInput struct {
	Point    string
	Product  string
	Op       Operation
	Quantity int64
}

var (
	// ErrNegativeStock is returned when a subtraction would go below zero.
	ErrNegativeStock = errors.New("stock: not enough stock")
	// ErrInvalidQuantity rejects negative quantities.
	ErrInvalidQuantity = errors.New("stock: quantity must be >= 0")
	// ErrInvalidOperation rejects unknown operations.
	ErrInvalidOperation = errors.New("stock: unknown operation")
	// ErrLevelNotFound indicates a missing stock row.
	ErrLevelNotFound = errors.New("stock: level not found")
)

// Apply computes the quantity after op.
func Apply(current int64, op Operation, qty int64) (int64, error) {
	if qty < 0 {
		return current, ErrInvalidQuantity
	}
	switch op {
	case OpAdd:
		return current + qty, nil
	case OpSubtract:
		if qty > current {
			return current, fmt.Errorf("%w: have %d, need %d", ErrNegativeStock, current, qty)
		}
		return current - qty, nil
	case OpSet:
		return qty, nil
	default:
		return current, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
}
