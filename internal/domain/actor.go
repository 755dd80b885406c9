package domain

import "time"

// ActorStatus represents an actor's registration state
type ActorStatus string

const (
	StatusUnregistered ActorStatus = "unregistered"
	StatusPending      ActorStatus = "pending"
	StatusApproved     ActorStatus = "approved"
	StatusDenied       ActorStatus = "denied"
)

// String returns the string representation of the status
func (s ActorStatus) String() string {
	return string(s)
}

// Actor is a human participant interacting through the channel.
// Actors are created on first contact and never deleted, only transitioned
// between statuses via the approval gate or explicit admin block/unblock.
type Actor struct {
	ID           int64
	Name         string
	Phone        string
	Status       ActorStatus
	RegisteredAt time.Time
}

// Admin is an actor with elevated rights, including who granted the
// right and when.
type Admin struct {
	ActorID   int64
	Name      string
	GrantedBy int64
	GrantedAt time.Time
}
