package service

import (
	"strings"

	"github.com/vibast-solutions/ms-go-grading/app/entity"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller as asserted by the identity provider.
type Actor struct {
	ID    string
	Role  string
	Email string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

func requireActor(actor *Actor) error {
	if actor == nil || strings.TrimSpace(actor.ID) == "" {
		return ErrUnauthenticated
	}
	return nil
}

// requireAdmin is the single role check behind every admin-only operation.
func requireAdmin(actor *Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrAccessDenied
	}
	return nil
}

func requireOwner(actor *Actor, sub *entity.Submission) error {
	if sub.CustomerID != actor.ID {
		return ErrAccessDenied
	}
	return nil
}

func canView(actor *Actor, sub *entity.Submission) bool {
	return actor.IsAdmin() || sub.CustomerID == actor.ID
}
