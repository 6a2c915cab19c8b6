package core_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"alquimist/internal/core"
	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T, opts ...core.Option) *core.Service {
	t.Helper()
	opts = append([]core.Option{core.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return core.NewInMemoryService(core.NewDefaultRulesEngine(), opts...)
}

func mustLab(t *testing.T, svc *core.Service, name string) core.LaboratoryView {
	t.Helper()
	lab, _, err := svc.CreateLaboratory(context.Background(), core.LaboratoryInput{Name: ptr(name), Address: ptr("Av. Principal 123")})
	if err != nil {
		t.Fatalf("create laboratory: %v", err)
	}
	return lab
}

func TestLaboratoryLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	lab := mustLab(t, svc, "Lab Central Norte")
	if lab.ID == "" || lab.Machines == nil || lab.Inventory == nil {
		t.Fatalf("expected id and empty nested slices, got %+v", lab)
	}

	updated, _, err := svc.UpdateLaboratory(ctx, lab.ID, core.LaboratoryInput{Name: ptr("Lab Norte")})
	if err != nil {
		t.Fatalf("update laboratory: %v", err)
	}
	if updated.Name != "Lab Norte" || updated.Address != "Av. Principal 123" {
		t.Fatalf("partial update should keep address, got %+v", updated.Laboratory)
	}

	machine, _, err := svc.CreateMachine(ctx, lab.ID, core.MachineInput{Name: ptr("Analizador Hematológico"), Type: ptr("Hematología"), Status: ptr(domain.MachineStatus("no disponible"))})
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	if machine.Status != domain.MachineUnavailable {
		t.Fatalf("expected normalized status, got %q", machine.Status)
	}
	if _, _, err := svc.CreateInventoryItem(ctx, lab.ID, inventoryInput(10, 2, domain.InventoryAvailable)); err != nil {
		t.Fatalf("create inventory: %v", err)
	}

	got, err := svc.GetLaboratory(ctx, lab.ID)
	if err != nil {
		t.Fatalf("get laboratory: %v", err)
	}
	if len(got.Machines) != 1 || len(got.Inventory) != 1 {
		t.Fatalf("expected nested machine and inventory, got %+v", got)
	}

	if _, err := svc.DeleteLaboratory(ctx, lab.ID); err != nil {
		t.Fatalf("delete laboratory: %v", err)
	}
	labs, err := svc.ListLaboratories(ctx)
	if err != nil {
		t.Fatalf("list laboratories: %v", err)
	}
	if len(labs) != 0 {
		t.Fatalf("expected no laboratories, got %d", len(labs))
	}
	if _, err := svc.ListMachines(ctx, lab.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for deleted lab machines, got %v", err)
	}
	if _, err := svc.DeleteLaboratory(ctx, lab.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestNestedOperationsAreScopedByParent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	north := mustLab(t, svc, "Lab Norte")
	south := mustLab(t, svc, "Lab Sur")

	if _, _, err := svc.CreateMachine(ctx, "missing", core.MachineInput{Name: ptr("X"), Type: ptr("Y"), Status: ptr(domain.MachineOperational)}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing lab, got %v", err)
	}
	m, _, err := svc.CreateMachine(ctx, north.ID, core.MachineInput{Name: ptr("Centrífuga"), Type: ptr("Preparación"), Status: ptr(domain.MachineOperational)})
	if err != nil {
		t.Fatalf("create machine: %v", err)
	}
	record := core.TestRecordInput{TestName: ptr("Hemograma"), Date: ptr("2024-01-15"), Status: ptr(domain.TestCompleted)}
	if _, _, err := svc.CreateTestRecord(ctx, south.ID, m.ID, record); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for machine under another lab, got %v", err)
	}
	created, _, err := svc.CreateTestRecord(ctx, north.ID, m.ID, record)
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if created.LabID != north.ID || created.MachineID != m.ID || created.Parameters == nil {
		t.Fatalf("unexpected record %+v", created)
	}
	if _, _, err := svc.UpdateMachine(ctx, south.ID, m.ID, core.MachineInput{Name: ptr("Z")}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found updating through the wrong lab, got %v", err)
	}
	if _, err := svc.DeleteMachine(ctx, north.ID, m.ID); err != nil {
		t.Fatalf("delete machine: %v", err)
	}
	if _, err := svc.ListTestRecords(ctx, north.ID, m.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected machine gone, got %v", err)
	}
}

func TestValidationRejectsBeforeStore(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	lab := mustLab(t, svc, "Lab Norte")

	in := inventoryInput(-1, -2, "unknown")
	in.Supplier = ptr("")
	_, _, err := svc.CreateInventoryItem(ctx, lab.ID, in)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	if fields["quantity"] != "Cantidad debe ser mayor o igual a 0" || fields["minStock"] == "" || fields["supplier"] != "Proveedor requerido" || fields["status"] == "" {
		t.Fatalf("unexpected field errors %+v", verr.Fields)
	}
	items, err := svc.ListInventory(ctx, lab.ID)
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected nothing stored, got %+v", items)
	}
}

func TestInventoryByLabGroupsItems(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	north := mustLab(t, svc, "Lab Norte")
	mustLab(t, svc, "Lab Sur")
	if _, _, err := svc.CreateInventoryItem(ctx, north.ID, inventoryInput(5, 1, domain.InventoryAvailable)); err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	groups, err := svc.InventoryByLab(ctx)
	if err != nil {
		t.Fatalf("inventory by lab: %v", err)
	}
	if len(groups) != 2 || groups[0].LabName != "Lab Norte" || len(groups[0].Inventory) != 1 || groups[1].Inventory == nil {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if _, err := svc.ListInventory(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientCascadeAndPartialTestUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	client, _, err := svc.CreateClient(ctx, core.ClientInput{Name: ptr("Juan Pérez"), Email: ptr("juan.perez@email.com"), Phone: ptr("555-0101")})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	test, _, err := svc.CreateClientTest(ctx, client.ID, core.ClientTestInput{
		TestID:    ptr("t1"),
		TestName:  ptr("Hemograma Completo"),
		ClientID:  ptr("ignored"),
		OrderDate: ptr("2024-01-15"),
		Status:    ptr(domain.TestInProgress),
		Notes:     ptr("Ayuno"),
	})
	if err != nil {
		t.Fatalf("create client test: %v", err)
	}
	if test.ClientID != client.ID {
		t.Fatalf("route client id should win, got %q", test.ClientID)
	}
	updated, _, err := svc.UpdateClientTest(ctx, client.ID, test.ID, core.ClientTestInput{Status: ptr(domain.TestCompleted)})
	if err != nil {
		t.Fatalf("update client test: %v", err)
	}
	if updated.Status != domain.TestCompleted || updated.Notes != "Ayuno" || updated.TestName != "Hemograma Completo" {
		t.Fatalf("unexpected partial update result %+v", updated)
	}
	if _, err := svc.DeleteClient(ctx, client.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if _, err := svc.ListClientTests(ctx, client.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected client gone, got %v", err)
	}
}

func TestAuditActivityFollowsActor(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateClient(ctx, core.ClientInput{Name: ptr("Sin actor"), Email: ptr("a@b.co"), Phone: ptr("1")}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	page, _ := svc.ListActivities(ctx, core.ActivityFilter{})
	if page.Total != 0 {
		t.Fatalf("expected no audit without actor, got %d", page.Total)
	}

	actx := core.WithActor(ctx, core.Actor{ID: "admin-1", Name: "Dr. Ana García", Role: domain.RoleAdmin})
	client, res, err := svc.CreateClient(actx, core.ClientInput{Name: ptr("María González"), Email: ptr("maria@email.com"), Phone: ptr("555-0102")})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	touched := res.Touched()
	if len(touched) != 2 || touched[0] != domain.EntityClient || touched[1] != domain.EntityActivity {
		t.Fatalf("expected client and activity in one transaction, got %v", touched)
	}
	page, _ = svc.ListActivities(ctx, core.ActivityFilter{})
	if page.Total != 1 {
		t.Fatalf("expected one activity, got %d", page.Total)
	}
	a := page.Items[0]
	if a.Action != "add_client" || a.UserID != "admin-1" || a.RelatedID != client.ID || a.Category != domain.CategoryTestManagement {
		t.Fatalf("unexpected activity %+v", a)
	}

	if _, err := svc.DeleteClient(actx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	page, _ = svc.ListActivities(ctx, core.ActivityFilter{})
	if page.Total != 1 {
		t.Fatalf("failed mutation must not leave an activity, got %d", page.Total)
	}
}

func TestAssignmentsFilterAndOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	mk := func(tech string, status domain.AssignmentStatus) domain.Assignment {
		a, _, err := svc.CreateAssignment(ctx, core.AssignmentInput{
			TestID:         ptr("ct1"),
			TechnicianID:   ptr(tech),
			TechnicianName: ptr("María López"),
			AssignedBy:     ptr("Dr. Carlos Mendez"),
			Status:         ptr(status),
		})
		if err != nil {
			t.Fatalf("create assignment: %v", err)
		}
		if a.AssignedDate == "" {
			t.Fatalf("expected server-side assigned date")
		}
		return a
	}
	mk("tecnico-1", domain.AssignmentAssigned)
	second := mk("tecnico-2", domain.AssignmentInProgress)
	mk("tecnico-1", domain.AssignmentCompleted)

	list, err := svc.ListAssignments(ctx, core.AssignmentFilter{TechnicianID: "tecnico-1"})
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two assignments for tecnico-1, got %d", len(list))
	}
	list, _ = svc.ListAssignments(ctx, core.AssignmentFilter{Status: domain.AssignmentInProgress})
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("unexpected status filter result %+v", list)
	}
	updated, _, err := svc.UpdateAssignment(ctx, second.ID, core.AssignmentInput{Notes: ptr("Urgente")})
	if err != nil {
		t.Fatalf("update assignment: %v", err)
	}
	if updated.Status != domain.AssignmentInProgress || updated.Notes != "Urgente" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if _, err := svc.DeleteAssignment(ctx, second.ID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}
	if _, err := svc.DeleteAssignment(ctx, second.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestIsClientError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"not found":   {domain.ErrNotFound{Entity: domain.EntityClient, ID: "x"}, true},
		"conflict":    {domain.ErrConflict{Entity: domain.EntityUser, Field: "email"}, true},
		"protected":   {domain.ErrProtected, true},
		"credentials": {domain.ErrInvalidCredentials, true},
		"validation":  {core.LaboratoryInput{}.Validate(false), true},
		"other":       {errors.New("disk full"), false},
	}
	for name, tc := range cases {
		if got := core.IsClientError(tc.err); got != tc.want {
			t.Fatalf("%s: IsClientError=%v want %v", name, got, tc.want)
		}
	}
}

func inventoryInput(quantity, minStock float64, status domain.InventoryStatus) core.InventoryInput {
	return core.InventoryInput{
		Name:           ptr("Reactivo de Hemoglobina"),
		Category:       ptr("Reactivos"),
		Quantity:       ptr(quantity),
		Unit:           ptr("ml"),
		MinStock:       ptr(minStock),
		ExpirationDate: ptr("2999-12-31"),
		Supplier:       ptr("BioLab Supplies"),
		Status:         ptr(status),
	}
}
