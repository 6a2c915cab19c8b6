package memory

import (
	"time"

	"alquimist/pkg/domain"
)

// transaction represents a mutation set applied to a private copy of the store state.
type transaction struct {
	transactionView
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return transactionView{state: &tx.state}
}

// Now returns the timestamp shared by every record written in this transaction.
func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) newID(prefix, supplied string) string {
	if supplied != "" {
		return supplied
	}
	return tx.store.idFn(prefix)
}

func (tx *transaction) stamp(base *domain.Base) {
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
	base.UpdatedAt = tx.now
}

// CreateLaboratory stores a new laboratory.
func (tx *transaction) CreateLaboratory(l domain.Laboratory) (domain.Laboratory, error) {
	l.ID = tx.newID("lab", l.ID)
	if tx.state.laboratories.has(l.ID) {
		return domain.Laboratory{}, domain.ErrConflict{Entity: domain.EntityLaboratory, Field: "id", Value: l.ID}
	}
	tx.stamp(&l.Base)
	tx.state.laboratories.put(l.ID, l)
	tx.recordChange(domain.Change{Entity: domain.EntityLaboratory, Action: domain.ActionCreate, After: l})
	return l, nil
}

// UpdateLaboratory mutates a laboratory in place.
func (tx *transaction) UpdateLaboratory(id string, mutator func(*domain.Laboratory) error) (domain.Laboratory, error) {
	current, ok := tx.state.laboratories.get(id)
	if !ok {
		return domain.Laboratory{}, domain.ErrNotFound{Entity: domain.EntityLaboratory, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Laboratory{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.laboratories.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityLaboratory, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteLaboratory removes a laboratory with its machines, their records, and its inventory.
func (tx *transaction) DeleteLaboratory(id string) error {
	current, ok := tx.state.laboratories.remove(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityLaboratory, ID: id}
	}
	for _, m := range tx.state.machines.removeWhere(func(m domain.Machine) bool { return m.LabID == id }) {
		tx.removeRecordsOf(m.ID)
		tx.recordChange(domain.Change{Entity: domain.EntityMachine, Action: domain.ActionDelete, Before: m})
	}
	for _, item := range tx.state.inventory.removeWhere(func(i domain.InventoryItem) bool { return i.LabID == id }) {
		tx.recordChange(domain.Change{Entity: domain.EntityInventoryItem, Action: domain.ActionDelete, Before: item})
	}
	tx.recordChange(domain.Change{Entity: domain.EntityLaboratory, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) removeRecordsOf(machineID string) {
	for _, r := range tx.state.records.removeWhere(func(r domain.TestRecord) bool { return r.MachineID == machineID }) {
		tx.recordChange(domain.Change{Entity: domain.EntityTestRecord, Action: domain.ActionDelete, Before: r})
	}
}

// CreateMachine stores a machine under an existing laboratory.
func (tx *transaction) CreateMachine(m domain.Machine) (domain.Machine, error) {
	if !tx.state.laboratories.has(m.LabID) {
		return domain.Machine{}, domain.ErrNotFound{Entity: domain.EntityLaboratory, ID: m.LabID}
	}
	m.ID = tx.newID("machine", m.ID)
	if tx.state.machines.has(m.ID) {
		return domain.Machine{}, domain.ErrConflict{Entity: domain.EntityMachine, Field: "id", Value: m.ID}
	}
	m.Status = domain.NormalizeMachineStatus(m.Status)
	tx.stamp(&m.Base)
	tx.state.machines.put(m.ID, m)
	tx.recordChange(domain.Change{Entity: domain.EntityMachine, Action: domain.ActionCreate, After: m})
	return m, nil
}

// UpdateMachine mutates a machine owned by labID. The owner cannot change.
func (tx *transaction) UpdateMachine(labID, id string, mutator func(*domain.Machine) error) (domain.Machine, error) {
	current, ok := tx.FindMachine(labID, id)
	if !ok {
		return domain.Machine{}, domain.ErrNotFound{Entity: domain.EntityMachine, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Machine{}, err
	}
	current.Base = before.Base
	current.LabID = before.LabID
	current.UpdatedAt = tx.now
	current.Status = domain.NormalizeMachineStatus(current.Status)
	tx.state.machines.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityMachine, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteMachine removes a machine and its test records.
func (tx *transaction) DeleteMachine(labID, id string) error {
	if _, ok := tx.FindMachine(labID, id); !ok {
		return domain.ErrNotFound{Entity: domain.EntityMachine, ID: id}
	}
	current, _ := tx.state.machines.remove(id)
	tx.removeRecordsOf(id)
	tx.recordChange(domain.Change{Entity: domain.EntityMachine, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateTestRecord stores a record under an existing machine and copies the machine's lab.
func (tx *transaction) CreateTestRecord(r domain.TestRecord) (domain.TestRecord, error) {
	machine, ok := tx.FindMachine(r.LabID, r.MachineID)
	if !ok {
		return domain.TestRecord{}, domain.ErrNotFound{Entity: domain.EntityMachine, ID: r.MachineID}
	}
	r.ID = tx.newID("record", r.ID)
	if tx.state.records.has(r.ID) {
		return domain.TestRecord{}, domain.ErrConflict{Entity: domain.EntityTestRecord, Field: "id", Value: r.ID}
	}
	r.LabID = machine.LabID
	r = cloneTestRecord(r)
	tx.stamp(&r.Base)
	tx.state.records.put(r.ID, r)
	tx.recordChange(domain.Change{Entity: domain.EntityTestRecord, Action: domain.ActionCreate, After: cloneTestRecord(r)})
	return cloneTestRecord(r), nil
}

// UpdateTestRecord mutates a record owned by machineID.
func (tx *transaction) UpdateTestRecord(machineID, id string, mutator func(*domain.TestRecord) error) (domain.TestRecord, error) {
	current, ok := tx.FindTestRecord(machineID, id)
	if !ok {
		return domain.TestRecord{}, domain.ErrNotFound{Entity: domain.EntityTestRecord, ID: id}
	}
	before := cloneTestRecord(current)
	if err := mutator(&current); err != nil {
		return domain.TestRecord{}, err
	}
	current.Base = before.Base
	current.LabID = before.LabID
	current.MachineID = before.MachineID
	current.UpdatedAt = tx.now
	current = cloneTestRecord(current)
	tx.state.records.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityTestRecord, Action: domain.ActionUpdate, Before: before, After: cloneTestRecord(current)})
	return cloneTestRecord(current), nil
}

// DeleteTestRecord removes a record owned by machineID.
func (tx *transaction) DeleteTestRecord(machineID, id string) error {
	if _, ok := tx.FindTestRecord(machineID, id); !ok {
		return domain.ErrNotFound{Entity: domain.EntityTestRecord, ID: id}
	}
	current, _ := tx.state.records.remove(id)
	tx.recordChange(domain.Change{Entity: domain.EntityTestRecord, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateInventoryItem stores an item under an existing laboratory.
func (tx *transaction) CreateInventoryItem(item domain.InventoryItem) (domain.InventoryItem, error) {
	if !tx.state.laboratories.has(item.LabID) {
		return domain.InventoryItem{}, domain.ErrNotFound{Entity: domain.EntityLaboratory, ID: item.LabID}
	}
	item.ID = tx.newID("inv", item.ID)
	if tx.state.inventory.has(item.ID) {
		return domain.InventoryItem{}, domain.ErrConflict{Entity: domain.EntityInventoryItem, Field: "id", Value: item.ID}
	}
	tx.stamp(&item.Base)
	tx.state.inventory.put(item.ID, item)
	tx.recordChange(domain.Change{Entity: domain.EntityInventoryItem, Action: domain.ActionCreate, After: item})
	return item, nil
}

// UpdateInventoryItem mutates an item owned by labID.
func (tx *transaction) UpdateInventoryItem(labID, id string, mutator func(*domain.InventoryItem) error) (domain.InventoryItem, error) {
	current, ok := tx.FindInventoryItem(labID, id)
	if !ok {
		return domain.InventoryItem{}, domain.ErrNotFound{Entity: domain.EntityInventoryItem, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.InventoryItem{}, err
	}
	current.Base = before.Base
	current.LabID = before.LabID
	current.UpdatedAt = tx.now
	tx.state.inventory.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityInventoryItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteInventoryItem removes an item owned by labID.
func (tx *transaction) DeleteInventoryItem(labID, id string) error {
	if _, ok := tx.FindInventoryItem(labID, id); !ok {
		return domain.ErrNotFound{Entity: domain.EntityInventoryItem, ID: id}
	}
	current, _ := tx.state.inventory.remove(id)
	tx.recordChange(domain.Change{Entity: domain.EntityInventoryItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateClient stores a new client.
func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	c.ID = tx.newID("client", c.ID)
	if tx.state.clients.has(c.ID) {
		return domain.Client{}, domain.ErrConflict{Entity: domain.EntityClient, Field: "id", Value: c.ID}
	}
	tx.stamp(&c.Base)
	tx.state.clients.put(c.ID, c)
	tx.recordChange(domain.Change{Entity: domain.EntityClient, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateClient mutates a client.
func (tx *transaction) UpdateClient(id string, mutator func(*domain.Client) error) (domain.Client, error) {
	current, ok := tx.state.clients.get(id)
	if !ok {
		return domain.Client{}, domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Client{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.clients.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityClient, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteClient removes a client and its tests.
func (tx *transaction) DeleteClient(id string) error {
	current, ok := tx.state.clients.remove(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
	}
	for _, t := range tx.state.clientTests.removeWhere(func(t domain.ClientTest) bool { return t.ClientID == id }) {
		tx.recordChange(domain.Change{Entity: domain.EntityClientTest, Action: domain.ActionDelete, Before: t})
	}
	tx.recordChange(domain.Change{Entity: domain.EntityClient, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateClientTest stores a test under an existing client.
func (tx *transaction) CreateClientTest(t domain.ClientTest) (domain.ClientTest, error) {
	if !tx.state.clients.has(t.ClientID) {
		return domain.ClientTest{}, domain.ErrNotFound{Entity: domain.EntityClient, ID: t.ClientID}
	}
	t.ID = tx.newID("test", t.ID)
	if tx.state.clientTests.has(t.ID) {
		return domain.ClientTest{}, domain.ErrConflict{Entity: domain.EntityClientTest, Field: "id", Value: t.ID}
	}
	t = cloneClientTest(t)
	tx.stamp(&t.Base)
	tx.state.clientTests.put(t.ID, t)
	tx.recordChange(domain.Change{Entity: domain.EntityClientTest, Action: domain.ActionCreate, After: cloneClientTest(t)})
	return cloneClientTest(t), nil
}

// UpdateClientTest mutates a test owned by clientID.
func (tx *transaction) UpdateClientTest(clientID, id string, mutator func(*domain.ClientTest) error) (domain.ClientTest, error) {
	current, ok := tx.FindClientTest(clientID, id)
	if !ok {
		return domain.ClientTest{}, domain.ErrNotFound{Entity: domain.EntityClientTest, ID: id}
	}
	before := cloneClientTest(current)
	if err := mutator(&current); err != nil {
		return domain.ClientTest{}, err
	}
	current.Base = before.Base
	current.ClientID = before.ClientID
	current.UpdatedAt = tx.now
	current = cloneClientTest(current)
	tx.state.clientTests.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityClientTest, Action: domain.ActionUpdate, Before: before, After: cloneClientTest(current)})
	return cloneClientTest(current), nil
}

// DeleteClientTest removes a test owned by clientID.
func (tx *transaction) DeleteClientTest(clientID, id string) error {
	if _, ok := tx.FindClientTest(clientID, id); !ok {
		return domain.ErrNotFound{Entity: domain.EntityClientTest, ID: id}
	}
	current, _ := tx.state.clientTests.remove(id)
	tx.recordChange(domain.Change{Entity: domain.EntityClientTest, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateAssignment stores a new assignment.
func (tx *transaction) CreateAssignment(a domain.Assignment) (domain.Assignment, error) {
	a.ID = tx.newID("assignment", a.ID)
	if tx.state.assignments.has(a.ID) {
		return domain.Assignment{}, domain.ErrConflict{Entity: domain.EntityAssignment, Field: "id", Value: a.ID}
	}
	tx.stamp(&a.Base)
	tx.state.assignments.put(a.ID, a)
	tx.recordChange(domain.Change{Entity: domain.EntityAssignment, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAssignment mutates an assignment.
func (tx *transaction) UpdateAssignment(id string, mutator func(*domain.Assignment) error) (domain.Assignment, error) {
	current, ok := tx.state.assignments.get(id)
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound{Entity: domain.EntityAssignment, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Assignment{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.assignments.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityAssignment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAssignment removes an assignment.
func (tx *transaction) DeleteAssignment(id string) error {
	current, ok := tx.state.assignments.remove(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAssignment, ID: id}
	}
	tx.recordChange(domain.Change{Entity: domain.EntityAssignment, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) emailTaken(email, exceptID string) bool {
	for _, id := range tx.state.users.order {
		if id != exceptID && tx.state.users.items[id].Email == email {
			return true
		}
	}
	return false
}

// CreateUser stores a new user. Emails are unique.
func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	u.ID = tx.newID("user", u.ID)
	if tx.state.users.has(u.ID) {
		return domain.User{}, domain.ErrConflict{Entity: domain.EntityUser, Field: "id", Value: u.ID}
	}
	if tx.emailTaken(u.Email, "") {
		return domain.User{}, domain.ErrConflict{Entity: domain.EntityUser, Field: "email", Value: u.Email}
	}
	u = cloneUser(u)
	tx.stamp(&u.Base)
	tx.state.users.put(u.ID, u)
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// UpdateUser mutates a user, rejecting an email already held by another user.
func (tx *transaction) UpdateUser(id string, mutator func(*domain.User) error) (domain.User, error) {
	current, ok := tx.FindUser(id)
	if !ok {
		return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	before := cloneUser(current)
	if err := mutator(&current); err != nil {
		return domain.User{}, err
	}
	if tx.emailTaken(current.Email, id) {
		return domain.User{}, domain.ErrConflict{Entity: domain.EntityUser, Field: "email", Value: current.Email}
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	current = cloneUser(current)
	tx.state.users.put(id, current)
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: cloneUser(current)})
	return cloneUser(current), nil
}

// DeleteUser removes a user.
func (tx *transaction) DeleteUser(id string) error {
	current, ok := tx.state.users.remove(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: current})
	return nil
}

// AppendActivity prepends an activity and evicts the oldest beyond MaxActivities.
func (tx *transaction) AppendActivity(a domain.Activity) (domain.Activity, error) {
	a.ID = tx.newID("activity", a.ID)
	if a.Timestamp.IsZero() {
		a.Timestamp = tx.now
	}
	a = cloneActivity(a)
	tx.state.activities = append([]domain.Activity{a}, tx.state.activities...)
	if len(tx.state.activities) > MaxActivities {
		tx.state.activities = tx.state.activities[:MaxActivities]
	}
	tx.recordChange(domain.Change{Entity: domain.EntityActivity, Action: domain.ActionCreate, After: cloneActivity(a)})
	return cloneActivity(a), nil
}

// PurgeActivities removes activities stamped at or before the cutoff and returns how many were removed.
func (tx *transaction) PurgeActivities(before time.Time) int {
	kept := make([]domain.Activity, 0, len(tx.state.activities))
	var removed []domain.Activity
	for _, a := range tx.state.activities {
		if !a.Timestamp.After(before) {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	if len(removed) == 0 {
		return 0
	}
	tx.state.activities = kept
	tx.recordChange(domain.Change{Entity: domain.EntityActivity, Action: domain.ActionDelete, Before: removed})
	return len(removed)
}
