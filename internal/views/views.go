// Package views holds the controllers behind each screen. Every controller
// consults the role gate before privileged reads or writes and issues REST
// calls directly; they share only the session store and the cart view-model.
package views

import (
	"context"
	"errors"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

var (
	ErrLoginRequired    = errors.New("please log in to continue")
	ErrAwaitingApproval = errors.New("seller account is awaiting admin approval")
	ErrNotConfirmed     = errors.New("action not confirmed")
	ErrNotOffered       = errors.New("action not available in the current state")
	ErrEmptyCart        = errors.New("cart is empty")
)

// Session is the read side of the session store.
type Session interface {
	Resolved() bool
	Session() *domain.Session
	Capabilities() rolegate.Capabilities
	Gate(r rolegate.Requirement) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Recorder receives notable user actions. A nil Recorder is allowed.
type Recorder interface {
	Record(ctx context.Context, kind domain.ActivityKind, subject string)
}

func confirm(ctx context.Context, c Confirmer, prompt string) error {
	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

func record(ctx context.Context, r Recorder, kind domain.ActivityKind, subject string) {
	if r != nil {
		r.Record(ctx, kind, subject)
	}
}

// requireAuth maps a redirect for anonymous users to ErrLoginRequired.
func requireAuth(s Session) error {
	err := s.Gate(rolegate.Authenticated)
	if errors.Is(err, rolegate.ErrRedirect) {
		return ErrLoginRequired
	}
	return err
}
