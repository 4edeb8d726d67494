package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jimmylelievre/billed/internal/session"
	"github.com/jimmylelievre/billed/internal/store"
	"github.com/jimmylelievre/billed/internal/views"
)

// Route is a path token addressing one application screen
type Route string

// The route table keys. The hash prefixes are kept from the legacy paths so
// deep links stay valid.
const (
	RouteLogin     Route = "/"
	RouteBills     Route = "#employee/bills"
	RouteNewBill   Route = "#employee/bill/new"
	RouteDashboard Route = "#admin/dashboard"
)

// NavigationContext is the process-wide current-location indicator. Only the
// Router mutates it; it is passed by reference instead of living in a global.
type NavigationContext struct {
	mu          sync.RWMutex
	currentPath Route
	activeIcon  string
}

// NewNavigationContext creates a NavigationContext at the landing route
func NewNavigationContext() *NavigationContext {
	return &NavigationContext{currentPath: RouteLogin}
}

// CurrentPath returns the current route
func (n *NavigationContext) CurrentPath() Route {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.currentPath
}

// ActiveIcon returns the identifier of the highlighted nav icon, or ""
func (n *NavigationContext) ActiveIcon() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.activeIcon
}

func (n *NavigationContext) set(path Route, icon string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentPath = path
	n.activeIcon = icon
}

// KnownRoute reports whether path is in the route table
func KnownRoute(path Route) bool {
	switch path {
	case RouteLogin, RouteBills, RouteNewBill, RouteDashboard:
		return true
	}
	return false
}

// Navigator triggers route changes. Controllers hold this interface rather
// than the Router itself.
type Navigator interface {
	Navigate(ctx context.Context, path Route) error
}

// Router maps route tokens to view construction. It owns navigation state
// and the active-icon highlight; it runs for the lifetime of the application
// and cycles between routes.
type Router struct {
	nav      *NavigationContext
	session  *session.Context
	renderer *views.Renderer
	display  Display

	bills   *BillsController
	newBill *NewBillController
}

// NewRouter wires the route table and constructs the controllers
func NewRouter(nav *NavigationContext, sess *session.Context, dataStore store.Store, renderer *views.Renderer, display Display, modal ModalController) *Router {
	r := &Router{
		nav:      nav,
		session:  sess,
		renderer: renderer,
		display:  display,
	}
	r.bills = NewBillsController(dataStore, renderer, display, nav, r, modal)
	r.newBill = NewNewBillController(dataStore, sess, renderer, display, nav, r)
	return r
}

// Bills returns the bill list controller
func (r *Router) Bills() *BillsController {
	return r.bills
}

// NewBill returns the bill creation controller
func (r *Router) NewBill() *NewBillController {
	return r.newBill
}

// Navigate dispatches a path change. Unknown paths degrade to the 404 view
// and leave the current path untouched; navigating anywhere but Login without
// a session lands on Login.
func (r *Router) Navigate(ctx context.Context, path Route) error {
	if !KnownRoute(path) {
		slog.Warn("Unknown route", "path", string(path))
		return r.show(r.renderer.NotFound())
	}

	if path != RouteLogin {
		sess, err := r.session.Current()
		if err != nil {
			return fmt.Errorf("checking session: %w", err)
		}
		if sess == nil {
			r.nav.set(RouteLogin, "")
			return r.show(r.renderer.Login())
		}
	}

	switch path {
	case RouteLogin:
		r.nav.set(RouteLogin, "")
		return r.show(r.renderer.Login())
	case RouteBills:
		r.nav.set(RouteBills, views.IconWindow)
		return r.bills.Load(ctx)
	case RouteNewBill:
		r.nav.set(RouteNewBill, views.IconMail)
		return r.newBill.Show()
	case RouteDashboard:
		r.nav.set(RouteDashboard, "")
		return r.show(r.renderer.Dashboard())
	}
	return nil
}

func (r *Router) show(markup string, err error) error {
	if err != nil {
		return err
	}
	r.display.Show(markup)
	return nil
}
