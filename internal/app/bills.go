package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/store"
	"github.com/jimmylelievre/billed/internal/views"
)

// BillsController orchestrates the bill list screen: fetch, sort, project
// to view state, and the receipt preview and create-navigation actions.
type BillsController struct {
	store     store.Store
	renderer  *views.Renderer
	display   Display
	nav       *NavigationContext
	navigator Navigator
	modal     ModalController

	mu      sync.Mutex
	loadGen uint64
}

// NewBillsController creates a BillsController
func NewBillsController(dataStore store.Store, renderer *views.Renderer, display Display, nav *NavigationContext, navigator Navigator, modal ModalController) *BillsController {
	return &BillsController{
		store:     dataStore,
		renderer:  renderer,
		display:   display,
		nav:       nav,
		navigator: navigator,
		modal:     modal,
	}
}

// Load fetches the bill list and renders it anti-chronologically. The
// Loading view is shown while the fetch is outstanding; a rejection is
// rendered as the Error view carrying the causal message, never returned to
// the caller. Each call takes a generation ticket so a slow fetch resolving
// after a newer Load can never overwrite the newer render.
func (c *BillsController) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loadGen++
	gen := c.loadGen
	icon := c.nav.ActiveIcon()
	if err := c.show(views.BillsState{Loading: true, ActiveIcon: icon}); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	bills, err := c.store.Bills().List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.loadGen {
		slog.Debug("Dropping stale bill list response", "generation", gen, "current", c.loadGen)
		return nil
	}

	if err != nil {
		slog.Error("Failed to load bills", "error", err)
		return c.show(views.BillsState{Error: err.Error(), ActiveIcon: icon})
	}

	return c.show(views.BillsState{Bills: projectRows(sortAntiChronological(bills)), ActiveIcon: icon})
}

// PreviewReceipt opens the receipt modal for the URL carried by the clicked
// element. A missing URL is a silent no-op; the preview is best effort.
func (c *BillsController) PreviewReceipt(billURL string) {
	if billURL == "" {
		slog.Warn("Receipt preview requested without a file URL")
		return
	}
	c.modal.Open(billURL)
}

// NavigateNewBill moves to the bill creation screen. Pure delegation, no I/O.
func (c *BillsController) NavigateNewBill(ctx context.Context) error {
	return c.navigator.Navigate(ctx, RouteNewBill)
}

func (c *BillsController) show(state views.BillsState) error {
	markup, err := c.renderer.Bills(state)
	if err != nil {
		return err
	}
	c.display.Show(markup)
	return nil
}

// sortAntiChronological returns the bills most recent first. The sort is
// stable and compares the ISO date strings lexically, so bills sharing a
// date keep their incoming order.
func sortAntiChronological(bills []*bill.Bill) []*bill.Bill {
	sorted := make([]*bill.Bill, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})
	return sorted
}

// projectRows maps bills to display rows. A date that fails to format is
// rendered verbatim rather than dropping the bill.
func projectRows(bills []*bill.Bill) []views.BillRow {
	rows := make([]views.BillRow, 0, len(bills))
	for _, b := range bills {
		date, err := views.FormatDate(b.Date)
		if err != nil {
			slog.Warn("Failed to format bill date", "bill", b.ID, "date", b.Date)
			date = b.Date
		}
		rows = append(rows, views.BillRow{
			ID:       b.ID,
			Type:     b.Type,
			Name:     b.Name,
			Date:     date,
			Amount:   views.FormatAmount(b.Amount),
			Status:   views.FormatStatus(b.Status),
			FileURL:  b.FileURL,
			FileName: b.FileName,
		})
	}
	return rows
}
