package core

import (
	"context"

	"alquimist/pkg/domain"
)

// Actor identifies who performs an operation. Requests carrying an actor get
// an Activity written inside the same transaction as the change.
type Actor struct {
	ID   string
	Name string
	Role string
}

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

// displayName falls back to the id when no name header was sent.
func (a Actor) displayName() string {
	if a.Name == "" {
		return a.ID
	}
	return a.Name
}

type auditEntry struct {
	action      string
	description string
	category    domain.ActivityCategory
	relatedID   string
	relatedName string
}

func (s *Service) audit(ctx context.Context, tx Transaction, entry auditEntry) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	return appendActivity(tx, actor, entry)
}

func appendActivity(tx Transaction, actor Actor, entry auditEntry) error {
	_, err := tx.AppendActivity(domain.Activity{
		UserID:      actor.ID,
		UserName:    actor.displayName(),
		UserRole:    actor.Role,
		Action:      entry.action,
		Description: entry.description,
		Category:    entry.category,
		RelatedID:   entry.relatedID,
		RelatedName: entry.relatedName,
	})
	return err
}

// RecordCommunication audits a chat mutation for the acting user. Chat state
// lives outside the entity store, so this commits on its own. Requests
// without an actor record nothing.
func (s *Service) RecordCommunication(ctx context.Context, action, what, relatedID, relatedName string) (Result, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Result{}, nil
	}
	return s.run(ctx, "record_communication", func(tx Transaction) error {
		return appendActivity(tx, actor, auditEntry{
			action:      action,
			description: actor.displayName() + " " + what,
			category:    domain.CategoryCommunication,
			relatedID:   relatedID,
			relatedName: relatedName,
		})
	})
}
