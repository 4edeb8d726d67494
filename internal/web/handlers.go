package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jimmylelievre/billed/internal/app"
	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/session"
)

// maxFormSize bounds multipart uploads (phone photos can be large)
const maxFormSize = int64(50 << 20) // 50MB

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeScreen writes the core's current screen as the response body
func (s *Server) writeScreen(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, s.display.Current())
}

// navigate forwards a route change into the router and writes the result
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, path app.Route) {
	if err := s.router.Navigate(r.Context(), path); err != nil {
		slog.Error("Navigation failed", "path", string(path), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeScreen(w, http.StatusOK)
}

// handleIndex serves the landing screen: Bills when logged in, Login otherwise
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		path := app.Route(r.URL.Path)
		if err := s.router.Navigate(r.Context(), path); err != nil {
			slog.Error("Navigation failed", "path", string(path), "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if !app.KnownRoute(path) {
			s.writeScreen(w, http.StatusNotFound)
			return
		}
		s.writeScreen(w, http.StatusOK)
		return
	}
	sess, err := s.session.Current()
	if err != nil {
		slog.Error("Error reading session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if sess != nil {
		http.Redirect(w, r, "/employee/bills", http.StatusSeeOther)
		return
	}
	s.navigate(w, r, app.RouteLogin)
}

// handleLogin stores the identity and moves to the bill list
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	email := r.FormValue("email")
	if email == "" {
		http.Error(w, "Email required", http.StatusBadRequest)
		return
	}
	userType := r.FormValue("type")
	if userType != session.TypeAdmin {
		userType = session.TypeEmployee
	}
	if err := s.session.Login(session.Session{Type: userType, Email: email}); err != nil {
		slog.Error("Login failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/employee/bills", http.StatusSeeOther)
}

// handleLogout removes the identity and returns to the login screen
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(); err != nil {
		slog.Error("Logout failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleBillsPage navigates to the bill list
func (s *Server) handleBillsPage(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, app.RouteBills)
}

// handleNewBillPage navigates to the creation form
func (s *Server) handleNewBillPage(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, app.RouteNewBill)
}

// handlePreviewReceipt forwards the icon-eye click into the controller and
// resolves the modal's URL. A click without a file URL falls back to the list.
func (s *Server) handlePreviewReceipt(w http.ResponseWriter, r *http.Request) {
	s.router.Bills().PreviewReceipt(r.URL.Query().Get("file"))
	if url := s.modal.URL(); url != "" {
		s.modal.Close()
		http.Redirect(w, r, url, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/employee/bills", http.StatusSeeOther)
}

// handleSubmitNewBill decodes the multipart form into the controller's
// commands: the file selection first, then the submission
func (s *Server) handleSubmitNewBill(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	ctrl := s.router.NewBill()

	f, header, err := r.FormFile("file")
	if err == nil {
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			slog.Error("Error reading file data", "error", readErr, "filename", header.Filename)
			http.Error(w, "Error reading file", http.StatusInternalServerError)
			return
		}
		changeErr := ctrl.HandleChangeFile(app.FileSelection{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
		var verr *app.ValidationError
		if errors.As(changeErr, &verr) {
			s.writeScreen(w, http.StatusBadRequest)
			return
		}
		if changeErr != nil {
			slog.Error("Error staging file", "error", changeErr)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	form, verr := decodeForm(r)
	if verr != nil {
		s.writeScreen(w, http.StatusBadRequest)
		return
	}

	err = ctrl.HandleSubmit(r.Context(), form)
	var validationErr *app.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeScreen(w, http.StatusBadRequest)
	case err != nil:
		slog.Error("Error submitting bill", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		// Success navigated the core to the bill list; a redirect gives the
		// browser a fresh GET of it
		http.Redirect(w, r, "/employee/bills", http.StatusSeeOther)
	}
}

// decodeForm maps raw form fields to the typed form values
func decodeForm(r *http.Request) (app.FormValues, *app.ValidationError) {
	amount, err := parseCents(r.FormValue("amount"))
	if err != nil {
		return app.FormValues{}, &app.ValidationError{Field: "amount", Reason: err.Error()}
	}
	vat, err := parseCents(r.FormValue("vat"))
	if err != nil {
		return app.FormValues{}, &app.ValidationError{Field: "vat", Reason: err.Error()}
	}
	pct := 20
	if raw := r.FormValue("pct"); raw != "" {
		pct, err = strconv.Atoi(raw)
		if err != nil {
			return app.FormValues{}, &app.ValidationError{Field: "pct", Reason: err.Error()}
		}
	}
	return app.FormValues{
		Type:       r.FormValue("expense-type"),
		Name:       r.FormValue("expense-name"),
		Date:       r.FormValue("datepicker"),
		Amount:     amount,
		VAT:        vat,
		PCT:        pct,
		Commentary: r.FormValue("commentary"),
	}, nil
}

// parseCents converts a decimal euro string ("348" or "348.50") to cents
func parseCents(raw string) (int, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(raw, ".")
	euros, err := strconv.Atoi(whole)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	cents := 0
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.Atoi(frac)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", raw)
		}
	}
	if euros < 0 {
		return euros*100 - cents, nil
	}
	return euros*100 + cents, nil
}

// handleListBills returns all bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.service.ListBills()
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, err := s.service.GetBill(id)
	if err != nil {
		jsonError(w, "Bill not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleCreateBill persists a new bill
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var b bill.Bill
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	created, err := s.service.CreateBill(&b)
	if err != nil {
		slog.Error("Error creating bill", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateBill persists changes to a bill
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var b bill.Bill
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	b.ID = r.PathValue("id")
	updated, err := s.service.UpdateBill(&b)
	if err != nil {
		slog.Error("Error updating bill", "id", b.ID, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteBill removes a bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBill(r.PathValue("id")); err != nil {
		jsonError(w, "Error deleting bill", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadFile stores a receipt file and returns its reference
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	ref, err := s.service.SaveReceiptFile(header.Filename, data)
	if err != nil {
		slog.Error("Error saving receipt file", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// handleGetBillFile serves the receipt attached to a bill
func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.GetBill(r.PathValue("id"))
	if err != nil {
		jsonError(w, "Bill not found", http.StatusNotFound)
		return
	}
	name := strings.TrimPrefix(b.FileURL, "/api/files/")
	if name == "" {
		jsonError(w, "Bill has no receipt", http.StatusNotFound)
		return
	}
	data, err := s.service.GetReceiptFile(name)
	if err != nil {
		jsonError(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeForName(name))
	w.Write(data)
}

// handleGetFile serves a stored receipt file
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.service.GetReceiptFile(name)
	if err != nil {
		jsonError(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeForName(name))
	w.Write(data)
}

func contentTypeForName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	}
	return "application/octet-stream"
}
