package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to snapshot data. Nested finders
// are scoped by their owning parent and miss when the parent does not match.
type TransactionView interface {
	ListLaboratories() []Laboratory
	FindLaboratory(id string) (Laboratory, bool)
	ListMachines(labID string) []Machine
	FindMachine(labID, id string) (Machine, bool)
	ListTestRecords(machineID string) []TestRecord
	FindTestRecord(machineID, id string) (TestRecord, bool)
	ListInventory(labID string) []InventoryItem
	FindInventoryItem(labID, id string) (InventoryItem, bool)
	ListClients() []Client
	FindClient(id string) (Client, bool)
	ListClientTests(clientID string) []ClientTest
	FindClientTest(clientID, id string) (ClientTest, bool)
	ListAssignments() []Assignment
	FindAssignment(id string) (Assignment, bool)
	ListUsers() []User
	FindUser(id string) (User, bool)
	FindUserByEmail(email string) (User, bool)
	ListActivities() []Activity
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	Now() time.Time

	CreateLaboratory(Laboratory) (Laboratory, error)
	UpdateLaboratory(id string, mutator func(*Laboratory) error) (Laboratory, error)
	DeleteLaboratory(id string) error

	CreateMachine(Machine) (Machine, error)
	UpdateMachine(labID, id string, mutator func(*Machine) error) (Machine, error)
	DeleteMachine(labID, id string) error

	CreateTestRecord(TestRecord) (TestRecord, error)
	UpdateTestRecord(machineID, id string, mutator func(*TestRecord) error) (TestRecord, error)
	DeleteTestRecord(machineID, id string) error

	CreateInventoryItem(InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(labID, id string, mutator func(*InventoryItem) error) (InventoryItem, error)
	DeleteInventoryItem(labID, id string) error

	CreateClient(Client) (Client, error)
	UpdateClient(id string, mutator func(*Client) error) (Client, error)
	DeleteClient(id string) error

	CreateClientTest(ClientTest) (ClientTest, error)
	UpdateClientTest(clientID, id string, mutator func(*ClientTest) error) (ClientTest, error)
	DeleteClientTest(clientID, id string) error

	CreateAssignment(Assignment) (Assignment, error)
	UpdateAssignment(id string, mutator func(*Assignment) error) (Assignment, error)
	DeleteAssignment(id string) error

	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	DeleteUser(id string) error

	AppendActivity(Activity) (Activity, error)
	PurgeActivities(before time.Time) int
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
