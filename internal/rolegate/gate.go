// Package rolegate derives what the current session may see and do.
//
// Every protected view asks the gate before rendering or mutating. The gate
// is a pure function of the session; it never talks to the network.
package rolegate

import (
	"errors"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// DefaultRoute is where a view sends the user when a capability is missing.
const DefaultRoute = "/"

var (
	// ErrUnresolved is returned while the session store has not finished its first refresh.
	ErrUnresolved = errors.New("session not resolved")
	// ErrRedirect is returned when the session lacks the capability a view requires.
	ErrRedirect = errors.New("capability missing, redirect to " + DefaultRoute)
)

type Capabilities struct {
	IsAuthenticated bool
	IsAdmin         bool
	IsSeller        bool
	IsPendingSeller bool
}

// Derive computes capabilities from a session; nil means anonymous.
func Derive(s *domain.Session) Capabilities {
	if s == nil {
		return Capabilities{}
	}
	isSeller := s.Role == domain.RoleSeller
	return Capabilities{
		IsAuthenticated: true,
		IsAdmin:         s.Role == domain.RoleAdmin,
		IsSeller:        isSeller,
		IsPendingSeller: s.SellerStatus == domain.SellerPending && !isSeller,
	}
}

type Requirement int

const (
	Anyone Requirement = iota
	Authenticated
	Admin
	Seller
	PendingSeller
)

func (r Requirement) String() string {
	switch r {
	case Anyone:
		return "anyone"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	case Seller:
		return "seller"
	case PendingSeller:
		return "pending_seller"
	default:
		return "unknown"
	}
}

func (c Capabilities) Satisfies(r Requirement) bool {
	switch r {
	case Anyone:
		return true
	case Authenticated:
		return c.IsAuthenticated
	case Admin:
		return c.IsAdmin
	case Seller:
		return c.IsSeller
	case PendingSeller:
		return c.IsPendingSeller
	default:
		return false
	}
}

type Decision int

const (
	// Wait means nothing privileged may be produced yet.
	Wait Decision = iota
	Render
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide gates on the resolved flag first, so an unresolved session never renders.
func Decide(resolved bool, c Capabilities, r Requirement) Decision {
	if !resolved {
		return Wait
	}
	if c.Satisfies(r) {
		return Render
	}
	return Redirect
}

// Check is Decide expressed as an error for call sites that return early.
func Check(resolved bool, c Capabilities, r Requirement) error {
	switch Decide(resolved, c, r) {
	case Wait:
		return ErrUnresolved
	case Redirect:
		return ErrRedirect
	default:
		return nil
	}
}

// CanReviewSeller reports whether approve/reject may be offered for a user row.
func CanReviewSeller(u domain.User) bool {
	return u.SellerStatus() == domain.SellerPending
}

// CanDeactivateSeller reports whether deactivate may be offered for a user row.
func CanDeactivateSeller(u domain.User) bool {
	return u.SellerStatus() == domain.SellerActive
}
