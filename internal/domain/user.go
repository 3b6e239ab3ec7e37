package domain

import "time"

// Role is the account role as reported by the backend.
type Role string

const (
	RoleUser          Role = "user"
	RoleSeller        Role = "seller"
	RolePendingSeller Role = "pending_seller"
	RoleAdmin         Role = "admin"
)

// AccountStatus is the backend's secondary status field on a user.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountPending  AccountStatus = "pending"
	AccountRejected AccountStatus = "rejected"
)

// SellerStatus is the client's view of where a user sits in the seller lifecycle.
type SellerStatus string

const (
	SellerNone     SellerStatus = "none"
	SellerPending  SellerStatus = "pending"
	SellerActive   SellerStatus = "active"
	SellerRejected SellerStatus = "rejected"
)

type User struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      Role          `json:"role"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// SellerStatus collapses the backend's role/status pair into a lifecycle state.
func (u User) SellerStatus() SellerStatus {
	switch {
	case u.Role == RoleSeller:
		return SellerActive
	case u.Role == RolePendingSeller, u.Status == AccountPending:
		return SellerPending
	case u.Status == AccountRejected:
		return SellerRejected
	default:
		return SellerNone
	}
}

// Session is the authenticated identity held by the session store.
// Role is one of RoleUser, RoleSeller or RoleAdmin; a pending seller is
// represented as RoleUser with SellerStatus == SellerPending.
type Session struct {
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	SellerStatus SellerStatus `json:"seller_status"`
}

// NewSession normalizes a backend profile into a Session.
func NewSession(u User) Session {
	role := u.Role
	if role == RolePendingSeller || role == "" {
		role = RoleUser
	}
	return Session{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         role,
		SellerStatus: u.SellerStatus(),
	}
}
