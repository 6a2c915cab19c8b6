package memory

import (
	"sort"

	"alquimist/pkg/domain"
)

// transactionView exposes a read-only view over a state value.
type transactionView struct {
	state *memoryState
}

func (v transactionView) ListLaboratories() []domain.Laboratory {
	return v.state.laboratories.values(identity[domain.Laboratory], nil)
}

func (v transactionView) FindLaboratory(id string) (domain.Laboratory, bool) {
	return v.state.laboratories.get(id)
}

func (v transactionView) ListMachines(labID string) []domain.Machine {
	return v.state.machines.values(identity[domain.Machine], func(m domain.Machine) bool {
		return labID == "" || m.LabID == labID
	})
}

func (v transactionView) FindMachine(labID, id string) (domain.Machine, bool) {
	m, ok := v.state.machines.get(id)
	if !ok || (labID != "" && m.LabID != labID) {
		return domain.Machine{}, false
	}
	return m, true
}

func (v transactionView) ListTestRecords(machineID string) []domain.TestRecord {
	return v.state.records.values(cloneTestRecord, func(r domain.TestRecord) bool {
		return machineID == "" || r.MachineID == machineID
	})
}

func (v transactionView) FindTestRecord(machineID, id string) (domain.TestRecord, bool) {
	r, ok := v.state.records.get(id)
	if !ok || (machineID != "" && r.MachineID != machineID) {
		return domain.TestRecord{}, false
	}
	return cloneTestRecord(r), true
}

func (v transactionView) ListInventory(labID string) []domain.InventoryItem {
	return v.state.inventory.values(identity[domain.InventoryItem], func(i domain.InventoryItem) bool {
		return labID == "" || i.LabID == labID
	})
}

func (v transactionView) FindInventoryItem(labID, id string) (domain.InventoryItem, bool) {
	item, ok := v.state.inventory.get(id)
	if !ok || (labID != "" && item.LabID != labID) {
		return domain.InventoryItem{}, false
	}
	return item, true
}

func (v transactionView) ListClients() []domain.Client {
	return v.state.clients.values(identity[domain.Client], nil)
}

func (v transactionView) FindClient(id string) (domain.Client, bool) {
	return v.state.clients.get(id)
}

func (v transactionView) ListClientTests(clientID string) []domain.ClientTest {
	return v.state.clientTests.values(cloneClientTest, func(t domain.ClientTest) bool {
		return clientID == "" || t.ClientID == clientID
	})
}

func (v transactionView) FindClientTest(clientID, id string) (domain.ClientTest, bool) {
	t, ok := v.state.clientTests.get(id)
	if !ok || (clientID != "" && t.ClientID != clientID) {
		return domain.ClientTest{}, false
	}
	return cloneClientTest(t), true
}

func (v transactionView) ListAssignments() []domain.Assignment {
	return v.state.assignments.values(identity[domain.Assignment], nil)
}

func (v transactionView) FindAssignment(id string) (domain.Assignment, bool) {
	return v.state.assignments.get(id)
}

func (v transactionView) ListUsers() []domain.User {
	return v.state.users.values(cloneUser, nil)
}

func (v transactionView) FindUser(id string) (domain.User, bool) {
	u, ok := v.state.users.get(id)
	if !ok {
		return domain.User{}, false
	}
	return cloneUser(u), true
}

func (v transactionView) FindUserByEmail(email string) (domain.User, bool) {
	for _, id := range v.state.users.order {
		if u := v.state.users.items[id]; u.Email == email {
			return cloneUser(u), true
		}
	}
	return domain.User{}, false
}

// ListActivities returns activities sorted by timestamp, newest first. Ties
// keep storage order.
func (v transactionView) ListActivities() []domain.Activity {
	out := make([]domain.Activity, len(v.state.activities))
	for i, a := range v.state.activities {
		out[i] = cloneActivity(a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
