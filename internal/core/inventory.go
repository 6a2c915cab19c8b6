package core

import (
	"context"
	"fmt"

	"alquimist/pkg/domain"
)

// LabInventory groups a laboratory's inventory under its name.
type LabInventory struct {
	LabID     string                 `json:"labId"`
	LabName   string                 `json:"labName"`
	Inventory []domain.InventoryItem `json:"inventory"`
}

// InventoryByLab returns the inventory of every laboratory, grouped per lab.
func (s *Service) InventoryByLab(ctx context.Context) ([]LabInventory, error) {
	var out []LabInventory
	err := s.view(ctx, "list_inventory", func(v TransactionView) error {
		labs := v.ListLaboratories()
		out = make([]LabInventory, len(labs))
		for i, lab := range labs {
			out[i] = LabInventory{LabID: lab.ID, LabName: lab.Name, Inventory: nonNil(v.ListInventory(lab.ID))}
		}
		return nil
	})
	return out, err
}

// ListInventory returns one laboratory's inventory.
func (s *Service) ListInventory(ctx context.Context, labID string) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	err := s.view(ctx, "list_lab_inventory", func(v TransactionView) error {
		if _, err := requireLaboratory(v, labID); err != nil {
			return err
		}
		out = nonNil(v.ListInventory(labID))
		return nil
	})
	return out, err
}

// CreateInventoryItem adds an item to a laboratory's inventory.
func (s *Service) CreateInventoryItem(ctx context.Context, labID string, in InventoryInput) (domain.InventoryItem, Result, error) {
	const op = "create_inventory_item"
	if err := in.Validate(false); err != nil {
		return domain.InventoryItem{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.InventoryItem
	res, err := s.run(ctx, op, func(tx Transaction) error {
		lab, err := requireLaboratory(tx, labID)
		if err != nil {
			return err
		}
		item := domain.InventoryItem{LabID: labID}
		in.apply(&item)
		out, err = tx.CreateInventoryItem(item)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "add_inventory",
			description: fmt.Sprintf("Agregó %s al inventario del %s", out.Name, lab.Name),
			category:    domain.CategoryInventory,
			relatedID:   out.ID,
			relatedName: out.Name,
		})
	})
	return out, res, err
}

// UpdateInventoryItem merges the supplied fields into an inventory item.
func (s *Service) UpdateInventoryItem(ctx context.Context, labID, itemID string, in InventoryInput) (domain.InventoryItem, Result, error) {
	const op = "update_inventory_item"
	if err := in.Validate(true); err != nil {
		return domain.InventoryItem{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.InventoryItem
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireLaboratory(tx, labID); err != nil {
			return err
		}
		var err error
		out, err = tx.UpdateInventoryItem(labID, itemID, func(item *domain.InventoryItem) error {
			in.apply(item)
			return nil
		})
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_inventory",
			description: fmt.Sprintf("Actualizó %s en inventario", out.Name),
			category:    domain.CategoryInventory,
			relatedID:   out.ID,
			relatedName: out.Name,
		})
	})
	return out, res, err
}

// DeleteInventoryItem removes an item from a laboratory's inventory.
func (s *Service) DeleteInventoryItem(ctx context.Context, labID, itemID string) (Result, error) {
	return s.run(ctx, "delete_inventory_item", func(tx Transaction) error {
		if _, err := requireLaboratory(tx, labID); err != nil {
			return err
		}
		item, ok := tx.FindInventoryItem(labID, itemID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityInventoryItem, ID: itemID}
		}
		if err := tx.DeleteInventoryItem(labID, itemID); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_inventory",
			description: fmt.Sprintf("Eliminó %s del inventario", item.Name),
			category:    domain.CategoryInventory,
			relatedID:   itemID,
			relatedName: item.Name,
		})
	})
}
