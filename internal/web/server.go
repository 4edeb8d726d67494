// Package web is the binding layer: it decodes HTTP requests into the
// core's explicit commands and writes back whatever the display holds. It
// also hosts the bills API the DataStore contract is served from.
package web

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/jimmylelievre/billed/internal/app"
	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/session"
)

// Server handles HTTP requests for the bills API and the employee pages
type Server struct {
	service *bill.Service
	router  *app.Router
	session *session.Context
	display *app.ScreenBuffer
	modal   *PreviewModal
	mux     *http.ServeMux
}

// PreviewModal implements the modal capability for the receipt preview. It
// tracks the URL the modal is bound to; the preview handler resolves it.
type PreviewModal struct {
	mu  sync.Mutex
	url string
}

// Open binds the modal to a receipt URL
func (m *PreviewModal) Open(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
}

// Close unbinds the modal
func (m *PreviewModal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = ""
}

// URL returns the URL the modal is currently bound to, or ""
func (m *PreviewModal) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// NewServer creates a new Server with default mux
func NewServer(service *bill.Service, router *app.Router, sess *session.Context, display *app.ScreenBuffer, modal *PreviewModal) *Server {
	return NewServerWithMux(service, router, sess, display, modal, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *bill.Service, router *app.Router, sess *session.Context, display *app.ScreenBuffer, modal *PreviewModal, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		router:  router,
		session: sess,
		display: display,
		modal:   modal,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers all routes on the server's mux.
// Routes must be registered from most specific to least specific to avoid conflicts.
func (s *Server) registerRoutes() {
	// API endpoints - bills
	s.mux.HandleFunc("GET /api/bills/{id}/file", s.handleGetBillFile)
	s.mux.HandleFunc("GET /api/bills/{id}", s.handleGetBill)
	s.mux.HandleFunc("PUT /api/bills/{id}", s.handleUpdateBill)
	s.mux.HandleFunc("DELETE /api/bills/{id}", s.handleDeleteBill)
	s.mux.HandleFunc("GET /api/bills", s.handleListBills)
	s.mux.HandleFunc("POST /api/bills", s.handleCreateBill)

	// API endpoints - receipt files
	s.mux.HandleFunc("POST /api/files", s.handleUploadFile)
	s.mux.HandleFunc("GET /api/files/{name}", s.handleGetFile)

	// Employee pages
	s.mux.HandleFunc("GET /employee/bills/preview", s.handlePreviewReceipt)
	s.mux.HandleFunc("GET /employee/bills", s.handleBillsPage)
	s.mux.HandleFunc("GET /employee/bill/new", s.handleNewBillPage)
	s.mux.HandleFunc("POST /employee/bill/new", s.handleSubmitNewBill)

	// Session
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// Landing page (catch-all, register last)
	s.mux.HandleFunc("GET /", s.handleIndex)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
