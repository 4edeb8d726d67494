// Package store defines the remote data accessor the view controllers
// depend on: bill CRUD plus the receipt upload primitive.
package store

import (
	"context"

	"github.com/jimmylelievre/billed/internal/bill"
)

// Accepted receipt MIME types
const (
	MimePNG  = "image/png"
	MimeJPG  = "image/jpg"
	MimeJPEG = "image/jpeg"
)

// AcceptedMime reports whether contentType is an accepted receipt type.
// Upload implementations refuse everything else.
func AcceptedMime(contentType string) bool {
	switch contentType {
	case MimePNG, MimeJPG, MimeJPEG:
		return true
	}
	return false
}

// BillsAccessor exposes bill CRUD
type BillsAccessor interface {
	// List returns all bills
	List(ctx context.Context) ([]*bill.Bill, error)

	// Create persists a new bill and assigns its ID
	Create(ctx context.Context, b *bill.Bill) (*bill.Bill, error)

	// Update persists changes to an existing bill
	Update(ctx context.Context, b *bill.Bill) (*bill.Bill, error)
}

// Store is the DataStore collaborator
type Store interface {
	// Bills returns the bill accessor
	Bills() BillsAccessor

	// Upload stores a receipt file and returns its reference
	Upload(ctx context.Context, filename, contentType string, data []byte) (bill.FileRef, error)
}
