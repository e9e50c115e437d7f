package app

import "github.com/dkeye/Membership/internal/domain"

type BackpressureAction int

const (
	// Disconnect removes the subscriber from the hub and closes it.
	Disconnect BackpressureAction = iota
	// DropEvent skips the event for this subscriber only.
	DropEvent
)

// Policy decides what happens to a subscriber that cannot keep up.
type Policy interface {
	OnBackPressure(room domain.RoomID, sub SubscriptionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, SubscriptionID) BackpressureAction {
	return Disconnect
}

// LossyPolicy keeps slow subscribers connected and lets them miss events.
type LossyPolicy struct{}

func (LossyPolicy) OnBackPressure(domain.RoomID, SubscriptionID) BackpressureAction {
	return DropEvent
}
