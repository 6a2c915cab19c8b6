package core

import (
	"context"
	"fmt"

	"alquimist/pkg/domain"
)

// MachineView is a machine with its test records.
type MachineView struct {
	domain.Machine
	Records []domain.TestRecord `json:"records"`
}

// LaboratoryView is a laboratory with its machines and inventory.
type LaboratoryView struct {
	domain.Laboratory
	Machines  []MachineView          `json:"machines"`
	Inventory []domain.InventoryItem `json:"inventory"`
}

func machineView(v TransactionView, m domain.Machine) MachineView {
	return MachineView{Machine: m, Records: nonNil(v.ListTestRecords(m.ID))}
}

func laboratoryView(v TransactionView, lab domain.Laboratory) LaboratoryView {
	machines := v.ListMachines(lab.ID)
	views := make([]MachineView, len(machines))
	for i, m := range machines {
		views[i] = machineView(v, m)
	}
	return LaboratoryView{Laboratory: lab, Machines: views, Inventory: nonNil(v.ListInventory(lab.ID))}
}

func requireLaboratory(v TransactionView, id string) (domain.Laboratory, error) {
	lab, ok := v.FindLaboratory(id)
	if !ok {
		return domain.Laboratory{}, domain.ErrNotFound{Entity: EntityLaboratory, ID: id}
	}
	return lab, nil
}

func requireMachine(v TransactionView, labID, machineID string) (domain.Machine, error) {
	if _, err := requireLaboratory(v, labID); err != nil {
		return domain.Machine{}, err
	}
	m, ok := v.FindMachine(labID, machineID)
	if !ok {
		return domain.Machine{}, domain.ErrNotFound{Entity: EntityMachine, ID: machineID}
	}
	return m, nil
}

// ListLaboratories returns every laboratory with nested machines and inventory.
func (s *Service) ListLaboratories(ctx context.Context) ([]LaboratoryView, error) {
	var out []LaboratoryView
	err := s.view(ctx, "list_laboratories", func(v TransactionView) error {
		labs := v.ListLaboratories()
		out = make([]LaboratoryView, len(labs))
		for i, lab := range labs {
			out[i] = laboratoryView(v, lab)
		}
		return nil
	})
	return out, err
}

// GetLaboratory returns one laboratory view.
func (s *Service) GetLaboratory(ctx context.Context, id string) (LaboratoryView, error) {
	var out LaboratoryView
	err := s.view(ctx, "get_laboratory", func(v TransactionView) error {
		lab, err := requireLaboratory(v, id)
		if err != nil {
			return err
		}
		out = laboratoryView(v, lab)
		return nil
	})
	return out, err
}

// CreateLaboratory persists a new laboratory.
func (s *Service) CreateLaboratory(ctx context.Context, in LaboratoryInput) (LaboratoryView, Result, error) {
	const op = "create_laboratory"
	if err := in.Validate(false); err != nil {
		return LaboratoryView{}, Result{}, s.reject(ctx, op, err)
	}
	var out LaboratoryView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var lab domain.Laboratory
		in.apply(&lab)
		created, err := tx.CreateLaboratory(lab)
		if err != nil {
			return err
		}
		out = laboratoryView(tx, created)
		return s.audit(ctx, tx, auditEntry{
			action:      "add_lab",
			description: fmt.Sprintf("Agregó laboratorio %s", created.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   created.ID,
			relatedName: created.Name,
		})
	})
	return out, res, err
}

// UpdateLaboratory merges the supplied fields into a laboratory.
func (s *Service) UpdateLaboratory(ctx context.Context, id string, in LaboratoryInput) (LaboratoryView, Result, error) {
	const op = "update_laboratory"
	if err := in.Validate(true); err != nil {
		return LaboratoryView{}, Result{}, s.reject(ctx, op, err)
	}
	var out LaboratoryView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		updated, err := tx.UpdateLaboratory(id, func(l *domain.Laboratory) error {
			in.apply(l)
			return nil
		})
		if err != nil {
			return err
		}
		out = laboratoryView(tx, updated)
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_lab",
			description: fmt.Sprintf("Editó laboratorio %s", updated.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
	return out, res, err
}

// DeleteLaboratory removes a laboratory with its machines, records and inventory.
func (s *Service) DeleteLaboratory(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_laboratory", func(tx Transaction) error {
		lab, err := requireLaboratory(tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteLaboratory(id); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_lab",
			description: fmt.Sprintf("Eliminó el laboratorio con ID %s", id),
			category:    domain.CategoryLabManagement,
			relatedID:   id,
			relatedName: lab.Name,
		})
	})
}

// ListMachines returns the machines of a laboratory with their records.
func (s *Service) ListMachines(ctx context.Context, labID string) ([]MachineView, error) {
	var out []MachineView
	err := s.view(ctx, "list_machines", func(v TransactionView) error {
		if _, err := requireLaboratory(v, labID); err != nil {
			return err
		}
		machines := v.ListMachines(labID)
		out = make([]MachineView, len(machines))
		for i, m := range machines {
			out[i] = machineView(v, m)
		}
		return nil
	})
	return out, err
}

// CreateMachine adds a machine to a laboratory.
func (s *Service) CreateMachine(ctx context.Context, labID string, in MachineInput) (MachineView, Result, error) {
	const op = "create_machine"
	if err := in.Validate(false); err != nil {
		return MachineView{}, Result{}, s.reject(ctx, op, err)
	}
	var out MachineView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireLaboratory(tx, labID); err != nil {
			return err
		}
		m := domain.Machine{LabID: labID}
		in.apply(&m)
		created, err := tx.CreateMachine(m)
		if err != nil {
			return err
		}
		out = machineView(tx, created)
		return s.audit(ctx, tx, auditEntry{
			action:      "add_machine",
			description: fmt.Sprintf("Agregó máquina %s", created.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   created.ID,
			relatedName: created.Name,
		})
	})
	return out, res, err
}

// UpdateMachine merges the supplied fields into a machine of labID.
func (s *Service) UpdateMachine(ctx context.Context, labID, machineID string, in MachineInput) (MachineView, Result, error) {
	const op = "update_machine"
	if err := in.Validate(true); err != nil {
		return MachineView{}, Result{}, s.reject(ctx, op, err)
	}
	var out MachineView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireMachine(tx, labID, machineID); err != nil {
			return err
		}
		updated, err := tx.UpdateMachine(labID, machineID, func(m *domain.Machine) error {
			in.apply(m)
			return nil
		})
		if err != nil {
			return err
		}
		out = machineView(tx, updated)
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_machine",
			description: fmt.Sprintf("Editó máquina %s", updated.Name),
			category:    domain.CategoryLabManagement,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
	return out, res, err
}

// DeleteMachine removes a machine and its records.
func (s *Service) DeleteMachine(ctx context.Context, labID, machineID string) (Result, error) {
	return s.run(ctx, "delete_machine", func(tx Transaction) error {
		m, err := requireMachine(tx, labID, machineID)
		if err != nil {
			return err
		}
		if err := tx.DeleteMachine(labID, machineID); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_machine",
			description: fmt.Sprintf("Eliminó la máquina con ID %s", machineID),
			category:    domain.CategoryLabManagement,
			relatedID:   machineID,
			relatedName: m.Name,
		})
	})
}

// ListTestRecords returns the records of a machine.
func (s *Service) ListTestRecords(ctx context.Context, labID, machineID string) ([]domain.TestRecord, error) {
	var out []domain.TestRecord
	err := s.view(ctx, "list_test_records", func(v TransactionView) error {
		if _, err := requireMachine(v, labID, machineID); err != nil {
			return err
		}
		out = nonNil(v.ListTestRecords(machineID))
		return nil
	})
	return out, err
}

// CreateTestRecord adds a record to a machine.
func (s *Service) CreateTestRecord(ctx context.Context, labID, machineID string, in TestRecordInput) (domain.TestRecord, Result, error) {
	const op = "create_test_record"
	if err := in.Validate(false); err != nil {
		return domain.TestRecord{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.TestRecord
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireMachine(tx, labID, machineID); err != nil {
			return err
		}
		r := domain.TestRecord{LabID: labID, MachineID: machineID}
		in.apply(&r)
		created, err := tx.CreateTestRecord(r)
		if err != nil {
			return err
		}
		out = created
		return s.audit(ctx, tx, auditEntry{
			action:      "add_record",
			description: fmt.Sprintf("Registró prueba %s", created.TestName),
			category:    domain.CategoryTestManagement,
			relatedID:   created.ID,
			relatedName: created.TestName,
		})
	})
	return out, res, err
}

// UpdateTestRecord merges the supplied fields into a record. Supplied
// parameters replace the whole list.
func (s *Service) UpdateTestRecord(ctx context.Context, labID, machineID, recordID string, in TestRecordInput) (domain.TestRecord, Result, error) {
	const op = "update_test_record"
	if err := in.Validate(true); err != nil {
		return domain.TestRecord{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.TestRecord
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireMachine(tx, labID, machineID); err != nil {
			return err
		}
		updated, err := tx.UpdateTestRecord(machineID, recordID, func(r *domain.TestRecord) error {
			in.apply(r)
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_record",
			description: fmt.Sprintf("Editó prueba %s", updated.TestName),
			category:    domain.CategoryTestManagement,
			relatedID:   updated.ID,
			relatedName: updated.TestName,
		})
	})
	return out, res, err
}

// DeleteTestRecord removes a record from a machine.
func (s *Service) DeleteTestRecord(ctx context.Context, labID, machineID, recordID string) (Result, error) {
	return s.run(ctx, "delete_test_record", func(tx Transaction) error {
		if _, err := requireMachine(tx, labID, machineID); err != nil {
			return err
		}
		if err := tx.DeleteTestRecord(machineID, recordID); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_record",
			description: fmt.Sprintf("Eliminó la prueba con ID %s", recordID),
			category:    domain.CategoryTestManagement,
			relatedID:   recordID,
		})
	})
}
