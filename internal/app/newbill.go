package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/session"
	"github.com/jimmylelievre/billed/internal/store"
	"github.com/jimmylelievre/billed/internal/views"
)

// FileSelection is a receipt file chosen in the form
type FileSelection struct {
	Name        string
	ContentType string
	Data        []byte
}

// mimeByExt maps the admitted extensions to the upload content types
var mimeByExt = map[string]string{
	"png":  store.MimePNG,
	"jpg":  store.MimeJPG,
	"jpeg": store.MimeJPEG,
}

// FormValues are the decoded new-bill form fields. Amounts are in cents.
type FormValues struct {
	Type       string
	Name       string
	Date       string
	Amount     int
	VAT        int
	PCT        int
	Commentary string
}

// NewBillController orchestrates receipt staging, form validation and bill
// submission.
type NewBillController struct {
	store     store.Store
	session   *session.Context
	renderer  *views.Renderer
	display   Display
	nav       *NavigationContext
	navigator Navigator

	mu        sync.Mutex
	staged    *FileSelection
	fileError bool
	lastError string
}

// NewNewBillController creates a NewBillController
func NewNewBillController(dataStore store.Store, sess *session.Context, renderer *views.Renderer, display Display, nav *NavigationContext, navigator Navigator) *NewBillController {
	return &NewBillController{
		store:     dataStore,
		session:   sess,
		renderer:  renderer,
		display:   display,
		nav:       nav,
		navigator: navigator,
	}
}

// Show renders the form with the current staging state
func (c *NewBillController) Show() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.show()
}

// StagedFile returns the currently staged selection, or nil
func (c *NewBillController) StagedFile() *FileSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged
}

// HandleChangeFile gates the receipt selection on its extension. Only png,
// jpg and jpeg are accepted, case-insensitively; an accepted file is staged
// for submission and clears the error indicator, a rejected one unstages,
// shows the indicator and blocks submission until a valid file is chosen.
// The latest selection always supersedes any prior one.
func (c *NewBillController) HandleChangeFile(sel FileSelection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(sel.Name), "."))
	if mime, ok := mimeByExt[ext]; ok {
		// The extension is what the gate admits; the browser-supplied
		// multipart type (often application/octet-stream) is not trusted
		sel.ContentType = mime
		c.staged = &sel
		c.fileError = false
		return c.show()
	}

	c.staged = nil
	c.fileError = true
	if err := c.show(); err != nil {
		return err
	}
	return &ValidationError{Field: "file", Reason: "extension must be png, jpg or jpeg"}
}

// HandleSubmit validates the form, uploads the staged receipt, creates the
// bill with status pending and navigates to the bill list. A missing staged
// file or field is a ValidationError and triggers no DataStore call; an
// upload or create rejection is rendered through the error convention and
// keeps the staged file so the user can retry without re-selecting it.
func (c *NewBillController) HandleSubmit(ctx context.Context, form FormValues) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staged == nil {
		c.fileError = true
		if err := c.show(); err != nil {
			return err
		}
		return &ValidationError{Field: "file", Reason: "a receipt of an accepted type is required"}
	}
	if verr := validateForm(form); verr != nil {
		if err := c.show(); err != nil {
			return err
		}
		return verr
	}

	sess, err := c.session.Current()
	if err != nil || sess == nil {
		return c.navigator.Navigate(ctx, RouteLogin)
	}

	ref, err := c.store.Upload(ctx, c.staged.Name, c.staged.ContentType, c.staged.Data)
	if err != nil {
		slog.Error("Failed to upload receipt", "filename", c.staged.Name, "error", err)
		c.lastError = err.Error()
		return c.show()
	}

	newBill := &bill.Bill{
		Email:      sess.Email,
		Type:       form.Type,
		Name:       form.Name,
		Date:       form.Date,
		Amount:     form.Amount,
		VAT:        form.VAT,
		PCT:        form.PCT,
		Commentary: form.Commentary,
		Status:     bill.StatusPending,
		FileURL:    ref.FileURL,
		FileName:   ref.FileName,
	}
	if _, err := c.store.Bills().Create(ctx, newBill); err != nil {
		slog.Error("Failed to create bill", "error", err)
		c.lastError = err.Error()
		return c.show()
	}

	c.staged = nil
	c.fileError = false
	c.lastError = ""
	return c.navigator.Navigate(ctx, RouteBills)
}

func validateForm(form FormValues) *ValidationError {
	if form.Type == "" {
		return &ValidationError{Field: "expense-type", Reason: "required"}
	}
	if form.Date == "" {
		return &ValidationError{Field: "datepicker", Reason: "required"}
	}
	if form.Amount < 0 {
		return &ValidationError{Field: "amount", Reason: "must be non-negative"}
	}
	if form.VAT < 0 {
		return &ValidationError{Field: "vat", Reason: "must be non-negative"}
	}
	if form.PCT < 0 {
		return &ValidationError{Field: "pct", Reason: "must be non-negative"}
	}
	return nil
}

// show renders the form view; callers hold the mutex
func (c *NewBillController) show() error {
	state := views.NewBillState{
		Types:      bill.KnownTypes,
		FileError:  c.fileError,
		Error:      c.lastError,
		ActiveIcon: c.nav.ActiveIcon(),
	}
	if c.staged != nil {
		state.FileName = c.staged.Name
	}
	markup, err := c.renderer.NewBill(state)
	if err != nil {
		return err
	}
	c.display.Show(markup)
	return nil
}
