package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivityKind string

const (
	// ActivityUnrecorded marks session changes that publish no event.
	ActivityUnrecorded   ActivityKind = ""
	ActivityLogin        ActivityKind = "session.login"
	ActivityRestored     ActivityKind = "session.restored"
	ActivityRegister     ActivityKind = "session.register"
	ActivityLogout       ActivityKind = "session.logout"
	ActivityExpired      ActivityKind = "session.expired"
	ActivityCartChanged  ActivityKind = "cart.changed"
	ActivityOrderPlaced  ActivityKind = "order.placed"
	ActivityOrderCancel  ActivityKind = "order.cancelled"
	ActivitySellerReview ActivityKind = "seller.reviewed"
)

// ActivityEvent is published for every observable client-side state change.
type ActivityEvent struct {
	ID         string          `json:"id"`
	Kind       ActivityKind    `json:"kind"`
	UserID     string          `json:"user_id,omitempty"`
	Role       Role            `json:"role,omitempty"`
	ItemCount  int             `json:"item_count,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Subject    string          `json:"subject,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
