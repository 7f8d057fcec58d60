package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidTransition indicates the requested status change is not allowed
// by the transition table or one of its guards.
var ErrInvalidTransition = errors.New("order: invalid status transition")

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusReceived:       {OrderStatusApproved, OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusApproved:       {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusCancelled:      {OrderStatusRefunded},
}

// CancellableStatuses lists the states an order may be cancelled from.
var CancellableStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusApproved,
	OrderStatusConfirmed,
}

// ValidOrderStatus reports whether the value is a known lifecycle state.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusReceived, OrderStatusApproved, OrderStatusConfirmed,
		OrderStatusShipped, OrderStatusOutForDelivery, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminalStatus reports whether no further transition is defined from the state.
func IsTerminalStatus(status OrderStatus) bool {
	return len(orderTransitions[status]) == 0
}

// CanTransition reports whether the table permits current -> target. The table
// has no self-loops: re-requesting the current status is rejected.
func CanTransition(current, target OrderStatus) bool {
	return slices.Contains(orderTransitions[current], target)
}

// WalletAction describes the ledger side effect a transition carries.
type WalletAction int

const (
	// WalletActionNone means the transition does not touch the wallet.
	WalletActionNone WalletAction = iota
	// WalletActionDebit means the wallet is charged Plan.Amount.
	WalletActionDebit
	// WalletActionCredit means the wallet is refunded Plan.Amount.
	WalletActionCredit
)

// SalesIncrement bumps a product's lifetime-sold counter on delivery.
type SalesIncrement struct {
	ProductRef string
	Quantity   int
}

// TransitionPlan is the full set of mutations an accepted transition implies.
// The coordinator executes the plan inside a single transaction; the plan must
// be computed from an order read inside that same transaction.
type TransitionPlan struct {
	From   OrderStatus
	To     OrderStatus
	Entry  StatusChange
	Wallet WalletAction
	// Amount is the absolute wallet delta when Wallet is not WalletActionNone.
	Amount            int64
	LedgerDescription string
	Sales             []SalesIncrement
}

// PlanTransition validates current -> target against the table and its guards
// and returns the side effects the coordinator must apply atomically.
func PlanTransition(order Order, target OrderStatus, now time.Time) (TransitionPlan, error) {
	current := order.CurrentStatus()

	if !ValidOrderStatus(target) {
		return TransitionPlan{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if IsTerminalStatus(current) {
		return TransitionPlan{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, current)
	}
	if !CanTransition(current, target) {
		return TransitionPlan{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}

	plan := TransitionPlan{
		From:  current,
		To:    target,
		Entry: StatusChange{Status: target, Timestamp: now},
	}

	switch target {
	case OrderStatusApproved, OrderStatusConfirmed:
		if len(order.Items) == 0 {
			return TransitionPlan{}, fmt.Errorf("%w: order has no items", ErrInvalidTransition)
		}
		if !order.HasShippingAddress() {
			return TransitionPlan{}, fmt.Errorf("%w: order has no shipping address", ErrInvalidTransition)
		}
	}

	switch target {
	case OrderStatusConfirmed:
		// Cart-checkout orders are debited at checkout; only unpaid
		// (custom) orders are charged on confirmation.
		if order.PaidAt == nil {
			if order.TotalAmount <= 0 {
				return TransitionPlan{}, fmt.Errorf("%w: order has no amount to charge", ErrInvalidTransition)
			}
			plan.Wallet = WalletActionDebit
			plan.Amount = order.TotalAmount
			plan.LedgerDescription = "Payment for order " + order.OrderNumber
		}
	case OrderStatusDelivered:
		for _, item := range order.Items {
			if item.Quantity <= 0 {
				continue
			}
			plan.Sales = append(plan.Sales, SalesIncrement{ProductRef: item.ProductRef, Quantity: item.Quantity})
		}
	case OrderStatusRefunded:
		if order.PaidAt == nil {
			return TransitionPlan{}, fmt.Errorf("%w: order was never paid", ErrInvalidTransition)
		}
		plan.Wallet = WalletActionCredit
		plan.Amount = order.TotalAmount
		plan.LedgerDescription = "Refund for order " + order.OrderNumber
	}

	return plan, nil
}

// ApplyTransition mutates the order with the plan's status change, history
// entry and lifecycle timestamps. Persistence (version bump, wallet and sales
// writes) is the coordinator's job.
func ApplyTransition(order *Order, plan TransitionPlan) {
	now := plan.Entry.Timestamp
	order.Status = plan.To
	order.History = append(order.History, plan.Entry)
	order.UpdatedAt = now

	switch plan.To {
	case OrderStatusConfirmed:
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
	case OrderStatusDelivered:
		order.DeliveredAt = &now
	case OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	case OrderStatusRefunded:
		order.RefundedAt = &now
	}
}
