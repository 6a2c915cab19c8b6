// Package domain defines the persistent laboratory entities, value types, and
// rule evaluation primitives shared by the alquimist services.
package domain

import "time"

// EntityType identifies the type of record stored in the entity store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLaboratory identifies a laboratory record.
	EntityLaboratory EntityType = "laboratory"
	// EntityMachine identifies a machine owned by a laboratory.
	EntityMachine EntityType = "machine"
	// EntityTestRecord identifies a test record produced on a machine.
	EntityTestRecord EntityType = "test_record"
	// EntityInventoryItem identifies an inventory item owned by a laboratory.
	EntityInventoryItem EntityType = "inventory_item"
	// EntityClient identifies a client record.
	EntityClient EntityType = "client"
	// EntityClientTest identifies a test ordered for a client.
	EntityClientTest EntityType = "client_test"
	// EntityAssignment identifies a technician assignment.
	EntityAssignment EntityType = "assignment"
	// EntityUser identifies a dashboard user.
	EntityUser EntityType = "user"
	// EntityActivity identifies an audit trail entry.
	EntityActivity EntityType = "activity"
	// EntityChannel identifies a chat channel.
	EntityChannel EntityType = "chat_channel"
	// EntityMessage identifies a chat message.
	EntityMessage EntityType = "chat_message"
	// EntityChatUser identifies a chat roster entry.
	EntityChatUser EntityType = "chat_user"
)

// MachineStatus reports whether a machine can run tests.
type MachineStatus string

const (
	MachineOperational MachineStatus = "operativa"
	MachineUnavailable MachineStatus = "no_disponible"
)

// MachineStatuses lists every accepted machine status.
var MachineStatuses = []MachineStatus{MachineOperational, MachineUnavailable}

// NormalizeMachineStatus maps the legacy spelled-out form onto the canonical value.
func NormalizeMachineStatus(s MachineStatus) MachineStatus {
	if s == "no disponible" {
		return MachineUnavailable
	}
	return s
}

// TestStatus tracks the lifecycle of a test record or client test.
type TestStatus string

const (
	TestOrdered    TestStatus = "ordenada"
	TestInProgress TestStatus = "en_proceso"
	TestCompleted  TestStatus = "completada"
	TestSent       TestStatus = "enviada"
)

// TestStatuses lists every accepted test status.
var TestStatuses = []TestStatus{TestOrdered, TestInProgress, TestCompleted, TestSent}

// ParameterStatus is the operator-asserted interpretation of a measured value.
type ParameterStatus string

const (
	ParameterNormal ParameterStatus = "normal"
	ParameterHigh   ParameterStatus = "high"
	ParameterLow    ParameterStatus = "low"
)

// ParameterStatuses lists every accepted parameter status.
var ParameterStatuses = []ParameterStatus{ParameterNormal, ParameterHigh, ParameterLow}

// InventoryStatus is the operator-set availability of an inventory item.
type InventoryStatus string

const (
	InventoryAvailable InventoryStatus = "disponible"
	InventoryLowStock  InventoryStatus = "bajo_stock"
	InventoryDepleted  InventoryStatus = "agotado"
	InventoryExpired   InventoryStatus = "vencido"
)

// InventoryStatuses lists every accepted inventory status.
var InventoryStatuses = []InventoryStatus{InventoryAvailable, InventoryLowStock, InventoryDepleted, InventoryExpired}

// AssignmentStatus tracks technician progress on an assignment.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "asignada"
	AssignmentInProgress AssignmentStatus = "en_proceso"
	AssignmentCompleted  AssignmentStatus = "completada"
)

// AssignmentStatuses lists every accepted assignment status.
var AssignmentStatuses = []AssignmentStatus{AssignmentAssigned, AssignmentInProgress, AssignmentCompleted}

// ActivityCategory groups audit records for filtering.
type ActivityCategory string

const (
	CategoryAuthentication ActivityCategory = "authentication"
	CategoryTestManagement ActivityCategory = "test_management"
	CategoryLabManagement  ActivityCategory = "lab_management"
	CategoryCommunication  ActivityCategory = "communication"
	CategoryInventory      ActivityCategory = "inventory"
	CategoryAssignment     ActivityCategory = "assignment"
)

// ActivityCategories lists every accepted activity category.
var ActivityCategories = []ActivityCategory{
	CategoryAuthentication,
	CategoryTestManagement,
	CategoryLabManagement,
	CategoryCommunication,
	CategoryInventory,
	CategoryAssignment,
}

// Severity captures rule outcomes.
type Severity string

// Rule severities.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Base carries identity and bookkeeping timestamps shared by stored records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Laboratory is a physical lab site. Machines and inventory reference it by LabID.
type Laboratory struct {
	Base
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Machine is an analyzer owned by a laboratory.
type Machine struct {
	Base
	LabID  string        `json:"labId"`
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Status MachineStatus `json:"status"`
}

// Parameter is one measured analyte within a test result.
type Parameter struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Value        string          `json:"value"`
	Unit         string          `json:"unit"`
	ReferenceMin float64         `json:"referenceMin"`
	ReferenceMax float64         `json:"referenceMax"`
	Status       ParameterStatus `json:"status"`
}

// Assignee holds the optional technician hand-off fields shared by tests.
type Assignee struct {
	AssignedTo   string `json:"assignedTo,omitempty"`
	AssignedBy   string `json:"assignedBy,omitempty"`
	AssignedDate string `json:"assignedDate,omitempty"`
}

// TestRecord is a test run on a machine.
type TestRecord struct {
	Base
	Assignee
	LabID      string      `json:"labId"`
	MachineID  string      `json:"machineId"`
	TestName   string      `json:"testName"`
	Date       string      `json:"date"`
	Status     TestStatus  `json:"status"`
	Notes      string      `json:"notes,omitempty"`
	Parameters []Parameter `json:"parameters"`
}

// InventoryItem is a consumable or instrument stocked by a laboratory.
type InventoryItem struct {
	Base
	LabID          string          `json:"labId"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Quantity       float64         `json:"quantity"`
	Unit           string          `json:"unit"`
	MinStock       float64         `json:"minStock"`
	ExpirationDate string          `json:"expirationDate"`
	Supplier       string          `json:"supplier"`
	Notes          string          `json:"notes,omitempty"`
	Status         InventoryStatus `json:"status"`
}

// Client is a patient or customer ordering tests.
type Client struct {
	Base
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ClientTest is a test ordered for a client.
type ClientTest struct {
	Base
	Assignee
	ClientID  string      `json:"clientId"`
	TestID    string      `json:"testId"`
	TestName  string      `json:"testName"`
	OrderDate string      `json:"orderDate"`
	Status    TestStatus  `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	Results   []Parameter `json:"results"`
}

// Assignment links a test to a technician. References are not checked for existence.
type Assignment struct {
	Base
	TestID         string           `json:"testId"`
	ClientTestID   string           `json:"clientTestId,omitempty"`
	RecordID       string           `json:"recordId,omitempty"`
	TechnicianID   string           `json:"technicianId"`
	TechnicianName string           `json:"technicianName"`
	AssignedBy     string           `json:"assignedBy"`
	AssignedDate   string           `json:"assignedDate"`
	Status         AssignmentStatus `json:"status"`
	Notes          string           `json:"notes,omitempty"`
}

// User is a dashboard account. PasswordHash is persisted but never rendered;
// use Profile for outbound payloads.
type User struct {
	Base
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"passwordHash"`
	Permissions  []string   `json:"permissions"`
	IsOnline     bool       `json:"isOnline"`
	LabID        string     `json:"labId,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// UserProfile is the password-free projection of a User.
type UserProfile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Permissions []string   `json:"permissions"`
	IsOnline    bool       `json:"isOnline"`
	LabID       string     `json:"labId,omitempty"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Profile strips credentials from the user.
func (u User) Profile() UserProfile {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return UserProfile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: append([]string(nil), perms...),
		IsOnline:    u.IsOnline,
		LabID:       u.LabID,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Activity is an append-only audit entry.
type Activity struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	UserName    string           `json:"userName"`
	UserRole    string           `json:"userRole"`
	Action      string           `json:"action"`
	Description string           `json:"description"`
	Category    ActivityCategory `json:"category"`
	Timestamp   time.Time        `json:"timestamp"`
	RelatedID   string           `json:"relatedId,omitempty"`
	RelatedName string           `json:"relatedName,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entityId"`
}

// Result aggregates the changes committed by a transaction and any rule violations.
type Result struct {
	Changes    []Change
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Touched reports the distinct entity types changed by the transaction, in first-seen order.
func (r Result) Touched() []EntityType {
	seen := make(map[EntityType]struct{}, len(r.Changes))
	var out []EntityType
	for _, c := range r.Changes {
		if _, ok := seen[c.Entity]; ok {
			continue
		}
		seen[c.Entity] = struct{}{}
		out = append(out, c.Entity)
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
