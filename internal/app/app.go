// Package app is the view-state orchestration core: a Router dispatching
// route tokens to controllers, a bills list controller and a new-bill
// controller. Controllers receive explicit commands from a binding layer,
// fetch through the DataStore contract, and hand rendered markup to a
// Display sink. Nothing in this package touches transport or templates
// directly.
package app

import (
	"fmt"
	"sync"
)

// ValidationError is an interaction error: bad file extension or a missing
// required form field. It is handled locally by the controllers, never turned
// into an error view, and blocks any I/O for the command that produced it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Display receives rendered markup. The binding layer decides what to do
// with it (write an HTTP response, swap a DOM root, ...).
type Display interface {
	Show(markup string)
}

// ModalController abstracts the receipt preview widget
type ModalController interface {
	// Open shows the modal bound to a receipt URL
	Open(url string)

	// Close hides the modal
	Close()
}

// ScreenBuffer is a Display that keeps the most recent markup
type ScreenBuffer struct {
	mu     sync.RWMutex
	markup string
}

// Show stores the markup as the current screen
func (s *ScreenBuffer) Show(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markup = markup
}

// Current returns the most recently shown markup
func (s *ScreenBuffer) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markup
}
