package store

import (
	"context"
	"fmt"

	"github.com/jimmylelievre/billed/internal/bill"
)

// Local implements Store on top of the in-process bill service
type Local struct {
	service *bill.Service
}

// NewLocal creates a Local store
func NewLocal(service *bill.Service) *Local {
	return &Local{service: service}
}

// Bills returns the bill accessor
func (l *Local) Bills() BillsAccessor {
	return &localBills{service: l.service}
}

// Upload stores a receipt file via the bill service
func (l *Local) Upload(ctx context.Context, filename, contentType string, data []byte) (bill.FileRef, error) {
	if !AcceptedMime(contentType) {
		return bill.FileRef{}, fmt.Errorf("unsupported receipt type %q", contentType)
	}
	return l.service.SaveReceiptFile(filename, data)
}

type localBills struct {
	service *bill.Service
}

func (a *localBills) List(ctx context.Context) ([]*bill.Bill, error) {
	return a.service.ListBills()
}

func (a *localBills) Create(ctx context.Context, b *bill.Bill) (*bill.Bill, error) {
	return a.service.CreateBill(b)
}

func (a *localBills) Update(ctx context.Context, b *bill.Bill) (*bill.Bill, error) {
	return a.service.UpdateBill(b)
}
