// Package views turns view state into markup. Renderers are pure: they
// hold no mutable state and never touch the stores.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/jimmylelievre/billed/internal/bill"
)

//go:embed templates/*.html
var templateFS embed.FS

// Navigation icon identifiers
const (
	IconWindow = "icon-window" // bill list
	IconMail   = "icon-mail"   // new bill form
)

// BillRow is one rendered line of the bill list
type BillRow struct {
	ID       string
	Type     string
	Name     string
	Date     string // display form; raw ISO value when formatting failed
	Amount   string
	Status   string
	FileURL  string
	FileName string
}

// BillsState drives the list screen: exactly one of Loading, Error or Bills
// is meaningful
type BillsState struct {
	Loading    bool
	Error      string
	Bills      []BillRow
	ActiveIcon string
}

// NewBillState drives the new-bill form
type NewBillState struct {
	Types      []string
	FileError  bool   // file-type indicator visible
	Error      string // submission failure message
	FileName   string // staged receipt, kept across a failed submit
	ActiveIcon string
}

// Renderer renders the application screens
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// Bills renders the bill list screen
func (r *Renderer) Bills(state BillsState) (string, error) {
	return r.render("bills.html", state)
}

// NewBill renders the bill creation form
func (r *Renderer) NewBill(state NewBillState) (string, error) {
	return r.render("newbill.html", state)
}

// Login renders the login screen
func (r *Renderer) Login() (string, error) {
	return r.render("login.html", nil)
}

// Dashboard renders the admin dashboard stub
func (r *Renderer) Dashboard() (string, error) {
	return r.render("dashboard.html", nil)
}

// NotFound renders the unknown-route screen
func (r *Renderer) NotFound() (string, error) {
	return r.render("notfound.html", nil)
}

var frenchMonths = [...]string{
	"Jan.", "Fév.", "Mar.", "Avr.", "Mai", "Juin",
	"Juil.", "Aoû.", "Sep.", "Oct.", "Nov.", "Déc.",
}

// FormatDate turns an ISO date into the short French display form
// ("2004-04-04" -> "4 Avr. 04"). Callers fall back to the raw value when it
// does not parse.
func FormatDate(iso string) (string, error) {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", iso, err)
	}
	return fmt.Sprintf("%d %s %02d", t.Day(), frenchMonths[t.Month()-1], t.Year()%100), nil
}

// FormatStatus turns a bill status into its display label
func FormatStatus(status string) string {
	switch status {
	case bill.StatusPending:
		return "En attente"
	case bill.StatusAccepted:
		return "Accepté"
	case bill.StatusRefused:
		return "Refusé"
	}
	return status
}

// FormatAmount turns cents into a euro display string ("10050" -> "100,50 €")
func FormatAmount(cents int) string {
	return fmt.Sprintf("%d,%02d €", cents/100, cents%100)
}
