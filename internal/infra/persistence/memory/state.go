package memory

import (
	"fmt"
	"maps"

	"alquimist/pkg/domain"
)

// MaxActivities bounds the activity log; the oldest entries are evicted first.
const MaxActivities = 1000

type memoryState struct {
	laboratories collection[domain.Laboratory]
	machines     collection[domain.Machine]
	records      collection[domain.TestRecord]
	inventory    collection[domain.InventoryItem]
	clients      collection[domain.Client]
	clientTests  collection[domain.ClientTest]
	assignments  collection[domain.Assignment]
	users        collection[domain.User]
	// activities is newest-first.
	activities []domain.Activity
}

// Snapshot captures a point-in-time clone of the store state. Slices keep
// storage order; Activities is newest-first.
type Snapshot struct {
	Laboratories []domain.Laboratory    `json:"laboratories"`
	Machines     []domain.Machine       `json:"machines"`
	TestRecords  []domain.TestRecord    `json:"test_records"`
	Inventory    []domain.InventoryItem `json:"inventory"`
	Clients      []domain.Client        `json:"clients"`
	ClientTests  []domain.ClientTest    `json:"client_tests"`
	Assignments  []domain.Assignment    `json:"assignments"`
	Users        []domain.User          `json:"users"`
	Activities   []domain.Activity      `json:"activities"`
}

// Buckets names the persistence buckets in a stable order.
var Buckets = []string{
	"laboratories",
	"machines",
	"test_records",
	"inventory",
	"clients",
	"client_tests",
	"assignments",
	"users",
	"activities",
}

var entityBuckets = map[domain.EntityType]string{
	domain.EntityLaboratory:    "laboratories",
	domain.EntityMachine:       "machines",
	domain.EntityTestRecord:    "test_records",
	domain.EntityInventoryItem: "inventory",
	domain.EntityClient:        "clients",
	domain.EntityClientTest:    "client_tests",
	domain.EntityAssignment:    "assignments",
	domain.EntityUser:          "users",
	domain.EntityActivity:      "activities",
}

// BucketsFor maps the entity types touched by a transaction to their buckets.
func BucketsFor(result domain.Result) []string {
	var out []string
	for _, entity := range result.Touched() {
		if bucket, ok := entityBuckets[entity]; ok {
			out = append(out, bucket)
		}
	}
	return out
}

// Target returns a pointer suitable for decoding the named bucket.
func (s *Snapshot) Target(bucket string) (any, error) {
	switch bucket {
	case "laboratories":
		return &s.Laboratories, nil
	case "machines":
		return &s.Machines, nil
	case "test_records":
		return &s.TestRecords, nil
	case "inventory":
		return &s.Inventory, nil
	case "clients":
		return &s.Clients, nil
	case "client_tests":
		return &s.ClientTests, nil
	case "assignments":
		return &s.Assignments, nil
	case "users":
		return &s.Users, nil
	case "activities":
		return &s.Activities, nil
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

// Payload returns the named bucket's contents for encoding. Nil slices are
// returned as empty so they encode as [].
func (s Snapshot) Payload(bucket string) (any, error) {
	switch bucket {
	case "laboratories":
		return nonNil(s.Laboratories), nil
	case "machines":
		return nonNil(s.Machines), nil
	case "test_records":
		return nonNil(s.TestRecords), nil
	case "inventory":
		return nonNil(s.Inventory), nil
	case "clients":
		return nonNil(s.Clients), nil
	case "client_tests":
		return nonNil(s.ClientTests), nil
	case "assignments":
		return nonNil(s.Assignments), nil
	case "users":
		return nonNil(s.Users), nil
	case "activities":
		return nonNil(s.Activities), nil
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func newMemoryState() memoryState {
	return memoryState{
		laboratories: newCollection[domain.Laboratory](),
		machines:     newCollection[domain.Machine](),
		records:      newCollection[domain.TestRecord](),
		inventory:    newCollection[domain.InventoryItem](),
		clients:      newCollection[domain.Client](),
		clientTests:  newCollection[domain.ClientTest](),
		assignments:  newCollection[domain.Assignment](),
		users:        newCollection[domain.User](),
	}
}

func (s memoryState) clone() memoryState {
	activities := make([]domain.Activity, len(s.activities))
	for i, a := range s.activities {
		activities[i] = cloneActivity(a)
	}
	return memoryState{
		laboratories: s.laboratories.clone(identity[domain.Laboratory]),
		machines:     s.machines.clone(identity[domain.Machine]),
		records:      s.records.clone(cloneTestRecord),
		inventory:    s.inventory.clone(identity[domain.InventoryItem]),
		clients:      s.clients.clone(identity[domain.Client]),
		clientTests:  s.clientTests.clone(cloneClientTest),
		assignments:  s.assignments.clone(identity[domain.Assignment]),
		users:        s.users.clone(cloneUser),
		activities:   activities,
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	activities := make([]domain.Activity, len(state.activities))
	for i, a := range state.activities {
		activities[i] = cloneActivity(a)
	}
	return Snapshot{
		Laboratories: state.laboratories.values(identity[domain.Laboratory], nil),
		Machines:     state.machines.values(identity[domain.Machine], nil),
		TestRecords:  state.records.values(cloneTestRecord, nil),
		Inventory:    state.inventory.values(identity[domain.InventoryItem], nil),
		Clients:      state.clients.values(identity[domain.Client], nil),
		ClientTests:  state.clientTests.values(cloneClientTest, nil),
		Assignments:  state.assignments.values(identity[domain.Assignment], nil),
		Users:        state.users.values(cloneUser, nil),
		Activities:   activities,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, v := range s.Laboratories {
		state.laboratories.put(v.ID, v)
	}
	for _, v := range s.Machines {
		state.machines.put(v.ID, v)
	}
	for _, v := range s.TestRecords {
		state.records.put(v.ID, cloneTestRecord(v))
	}
	for _, v := range s.Inventory {
		state.inventory.put(v.ID, v)
	}
	for _, v := range s.Clients {
		state.clients.put(v.ID, v)
	}
	for _, v := range s.ClientTests {
		state.clientTests.put(v.ID, cloneClientTest(v))
	}
	for _, v := range s.Assignments {
		state.assignments.put(v.ID, v)
	}
	for _, v := range s.Users {
		state.users.put(v.ID, cloneUser(v))
	}
	for _, a := range s.Activities {
		state.activities = append(state.activities, cloneActivity(a))
	}
	if len(state.activities) > MaxActivities {
		state.activities = state.activities[:MaxActivities]
	}
	return state
}

func identity[T any](v T) T { return v }

func cloneParameters(in []domain.Parameter) []domain.Parameter {
	if in == nil {
		return []domain.Parameter{}
	}
	return append([]domain.Parameter(nil), in...)
}

func cloneTestRecord(r domain.TestRecord) domain.TestRecord {
	r.Parameters = cloneParameters(r.Parameters)
	return r
}

func cloneClientTest(t domain.ClientTest) domain.ClientTest {
	t.Results = cloneParameters(t.Results)
	return t
}

func cloneUser(u domain.User) domain.User {
	if u.Permissions == nil {
		u.Permissions = []string{}
	} else {
		u.Permissions = append([]string(nil), u.Permissions...)
	}
	if u.LastLogin != nil {
		ts := *u.LastLogin
		u.LastLogin = &ts
	}
	return u
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Metadata != nil {
		a.Metadata = maps.Clone(a.Metadata)
	}
	return a
}
