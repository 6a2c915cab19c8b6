package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"alquimist/pkg/domain"
)

// AssignmentFilter narrows ListAssignments. Empty fields match everything.
type AssignmentFilter struct {
	TechnicianID string
	Status       domain.AssignmentStatus
	TestID       string
}

func (f AssignmentFilter) match(a domain.Assignment) bool {
	return (f.TechnicianID == "" || a.TechnicianID == f.TechnicianID) &&
		(f.Status == "" || a.Status == f.Status) &&
		(f.TestID == "" || a.TestID == f.TestID)
}

// ListAssignments returns matching assignments, most recently assigned first.
func (s *Service) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]domain.Assignment, error) {
	out := []domain.Assignment{}
	err := s.view(ctx, "list_assignments", func(v TransactionView) error {
		for _, a := range v.ListAssignments() {
			if filter.match(a) {
				out = append(out, a)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return assignedAt(out[i]).After(assignedAt(out[j]))
		})
		return nil
	})
	return out, err
}

func assignedAt(a domain.Assignment) time.Time {
	if t, err := time.Parse(time.RFC3339, a.AssignedDate); err == nil {
		return t
	}
	return a.CreatedAt
}

// CreateAssignment records a new technician assignment stamped with the
// transaction time.
func (s *Service) CreateAssignment(ctx context.Context, in AssignmentInput) (domain.Assignment, Result, error) {
	const op = "create_assignment"
	if err := in.Validate(false); err != nil {
		return domain.Assignment{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.Assignment
	res, err := s.run(ctx, op, func(tx Transaction) error {
		a := domain.Assignment{AssignedDate: tx.Now().Format(time.RFC3339)}
		in.apply(&a)
		var err error
		out, err = tx.CreateAssignment(a)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "create_assignment",
			description: fmt.Sprintf("Asignó prueba %s a %s", out.TestID, out.TechnicianName),
			category:    domain.CategoryAssignment,
			relatedID:   out.ID,
			relatedName: out.TechnicianName,
		})
	})
	return out, res, err
}

// UpdateAssignment merges the supplied fields into an assignment.
func (s *Service) UpdateAssignment(ctx context.Context, id string, in AssignmentInput) (domain.Assignment, Result, error) {
	const op = "update_assignment"
	if err := in.Validate(true); err != nil {
		return domain.Assignment{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.Assignment
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		out, err = tx.UpdateAssignment(id, func(a *domain.Assignment) error {
			in.apply(a)
			return nil
		})
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "update_assignment",
			description: fmt.Sprintf("Actualizó asignación de %s a %s", out.TechnicianName, out.Status),
			category:    domain.CategoryAssignment,
			relatedID:   out.ID,
			relatedName: out.TechnicianName,
		})
	})
	return out, res, err
}

// DeleteAssignment removes an assignment.
func (s *Service) DeleteAssignment(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_assignment", func(tx Transaction) error {
		if err := tx.DeleteAssignment(id); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_assignment",
			description: fmt.Sprintf("Eliminó la asignación con ID %s", id),
			category:    domain.CategoryAssignment,
			relatedID:   id,
		})
	})
}
