package core

import (
	"fmt"

	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

// Inputs carry client-supplied fields as pointers so updates can tell an
// omitted field from a zero value. Validate(partial) checks only supplied
// fields when partial is set; apply copies supplied fields onto a record.

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// LaboratoryInput is the writable part of a Laboratory.
type LaboratoryInput struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// Validate implements input validation.
func (in LaboratoryInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, !partial, "Nombre requerido")
	c.NonEmpty("address", in.Address, !partial, "Dirección requerida")
	return c.Err()
}

func (in LaboratoryInput) apply(l *domain.Laboratory) {
	set(&l.Name, in.Name)
	set(&l.Address, in.Address)
}

// machineStatusInputs also accepts the spelled-out legacy form.
var machineStatusInputs = []domain.MachineStatus{domain.MachineOperational, domain.MachineUnavailable, "no disponible"}

// MachineInput is the writable part of a Machine.
type MachineInput struct {
	Name   *string               `json:"name"`
	Type   *string               `json:"type"`
	Status *domain.MachineStatus `json:"status"`
}

// Validate implements input validation.
func (in MachineInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, !partial, "Nombre requerido")
	c.NonEmpty("type", in.Type, !partial, "Tipo requerido")
	validation.OneOf(c, "status", in.Status, !partial, machineStatusInputs)
	return c.Err()
}

func (in MachineInput) apply(m *domain.Machine) {
	set(&m.Name, in.Name)
	set(&m.Type, in.Type)
	if in.Status != nil {
		m.Status = domain.NormalizeMachineStatus(*in.Status)
	}
}

// ParameterInput is one measured analyte. Every field is required.
type ParameterInput struct {
	ID           *string                 `json:"id"`
	Name         *string                 `json:"name"`
	Value        *string                 `json:"value"`
	Unit         *string                 `json:"unit"`
	ReferenceMin *float64                `json:"referenceMin"`
	ReferenceMax *float64                `json:"referenceMax"`
	Status       *domain.ParameterStatus `json:"status"`
}

func (in ParameterInput) validate(c *validation.Collector) {
	validation.Present(c, "name", in.Name, true)
	validation.Present(c, "value", in.Value, true)
	validation.Present(c, "unit", in.Unit, true)
	validation.Present(c, "referenceMin", in.ReferenceMin, true)
	validation.Present(c, "referenceMax", in.ReferenceMax, true)
	validation.OneOf(c, "status", in.Status, true, domain.ParameterStatuses)
}

func validateParameters(c *validation.Collector, field string, params *[]ParameterInput) {
	if params == nil {
		return
	}
	for i, p := range *params {
		p.validate(c.Index(field, i))
	}
}

// parameters converts validated inputs, numbering parameters without an id.
func parameters(in []ParameterInput) []domain.Parameter {
	out := make([]domain.Parameter, len(in))
	for i, p := range in {
		param := domain.Parameter{ID: fmt.Sprintf("p%d", i+1)}
		set(&param.ID, p.ID)
		set(&param.Name, p.Name)
		set(&param.Value, p.Value)
		set(&param.Unit, p.Unit)
		set(&param.ReferenceMin, p.ReferenceMin)
		set(&param.ReferenceMax, p.ReferenceMax)
		set(&param.Status, p.Status)
		out[i] = param
	}
	return out
}

// AssigneeInput carries the optional technician hand-off fields.
type AssigneeInput struct {
	AssignedTo   *string `json:"assignedTo"`
	AssignedBy   *string `json:"assignedBy"`
	AssignedDate *string `json:"assignedDate"`
}

func (in AssigneeInput) apply(a *domain.Assignee) {
	set(&a.AssignedTo, in.AssignedTo)
	set(&a.AssignedBy, in.AssignedBy)
	set(&a.AssignedDate, in.AssignedDate)
}

// TestRecordInput is the writable part of a TestRecord.
type TestRecordInput struct {
	AssigneeInput
	TestName   *string            `json:"testName"`
	Date       *string            `json:"date"`
	Status     *domain.TestStatus `json:"status"`
	Notes      *string            `json:"notes"`
	Parameters *[]ParameterInput  `json:"parameters"`
}

// Validate implements input validation.
func (in TestRecordInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("testName", in.TestName, !partial, "Nombre de prueba requerido")
	validation.Present(c, "date", in.Date, !partial)
	validation.OneOf(c, "status", in.Status, !partial, domain.TestStatuses)
	validateParameters(c, "parameters", in.Parameters)
	return c.Err()
}

func (in TestRecordInput) apply(r *domain.TestRecord) {
	in.AssigneeInput.apply(&r.Assignee)
	set(&r.TestName, in.TestName)
	set(&r.Date, in.Date)
	set(&r.Status, in.Status)
	set(&r.Notes, in.Notes)
	if in.Parameters != nil {
		r.Parameters = parameters(*in.Parameters)
	}
	if r.Parameters == nil {
		r.Parameters = []domain.Parameter{}
	}
}

// InventoryInput is the writable part of an InventoryItem.
type InventoryInput struct {
	Name           *string                 `json:"name"`
	Category       *string                 `json:"category"`
	Quantity       *float64                `json:"quantity"`
	Unit           *string                 `json:"unit"`
	MinStock       *float64                `json:"minStock"`
	ExpirationDate *string                 `json:"expirationDate"`
	Supplier       *string                 `json:"supplier"`
	Notes          *string                 `json:"notes"`
	Status         *domain.InventoryStatus `json:"status"`
}

// Validate implements input validation.
func (in InventoryInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, !partial, "Nombre requerido")
	c.NonEmpty("category", in.Category, !partial, "Categoría requerida")
	c.NonNegative("quantity", in.Quantity, !partial, "Cantidad debe ser mayor o igual a 0")
	c.NonEmpty("unit", in.Unit, !partial, "Unidad requerida")
	c.NonNegative("minStock", in.MinStock, !partial, "Stock mínimo debe ser mayor o igual a 0")
	c.NonEmpty("expirationDate", in.ExpirationDate, !partial, "Fecha de expiración requerida")
	c.NonEmpty("supplier", in.Supplier, !partial, "Proveedor requerido")
	validation.OneOf(c, "status", in.Status, !partial, domain.InventoryStatuses)
	return c.Err()
}

func (in InventoryInput) apply(item *domain.InventoryItem) {
	set(&item.Name, in.Name)
	set(&item.Category, in.Category)
	set(&item.Quantity, in.Quantity)
	set(&item.Unit, in.Unit)
	set(&item.MinStock, in.MinStock)
	set(&item.ExpirationDate, in.ExpirationDate)
	set(&item.Supplier, in.Supplier)
	set(&item.Notes, in.Notes)
	set(&item.Status, in.Status)
}

// ClientInput is the writable part of a Client.
type ClientInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Validate implements input validation.
func (in ClientInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, !partial, "Nombre requerido")
	c.Email("email", in.Email, !partial, validation.MsgInvalidEmail)
	c.NonEmpty("phone", in.Phone, !partial, "Teléfono requerido")
	return c.Err()
}

func (in ClientInput) apply(cl *domain.Client) {
	set(&cl.Name, in.Name)
	set(&cl.Email, in.Email)
	set(&cl.Phone, in.Phone)
}

// ClientTestInput is the writable part of a ClientTest. ClientID is accepted
// for compatibility but the owning client always comes from the route.
type ClientTestInput struct {
	AssigneeInput
	TestID    *string            `json:"testId"`
	TestName  *string            `json:"testName"`
	ClientID  *string            `json:"clientId"`
	OrderDate *string            `json:"orderDate"`
	Status    *domain.TestStatus `json:"status"`
	Notes     *string            `json:"notes"`
	Results   *[]ParameterInput  `json:"results"`
}

// Validate implements input validation.
func (in ClientTestInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("testId", in.TestID, !partial, "ID de prueba requerido")
	c.NonEmpty("testName", in.TestName, !partial, "Nombre de prueba requerido")
	c.NonEmpty("clientId", in.ClientID, false, "ID de cliente requerido")
	validation.Present(c, "orderDate", in.OrderDate, !partial)
	validation.OneOf(c, "status", in.Status, !partial, domain.TestStatuses)
	validateParameters(c, "results", in.Results)
	return c.Err()
}

func (in ClientTestInput) apply(t *domain.ClientTest) {
	in.AssigneeInput.apply(&t.Assignee)
	set(&t.TestID, in.TestID)
	set(&t.TestName, in.TestName)
	set(&t.OrderDate, in.OrderDate)
	set(&t.Status, in.Status)
	set(&t.Notes, in.Notes)
	if in.Results != nil {
		t.Results = parameters(*in.Results)
	}
	if t.Results == nil {
		t.Results = []domain.Parameter{}
	}
}

// AssignmentInput is the writable part of an Assignment. The assigned date is
// stamped by the server.
type AssignmentInput struct {
	TestID         *string                  `json:"testId"`
	ClientTestID   *string                  `json:"clientTestId"`
	RecordID       *string                  `json:"recordId"`
	TechnicianID   *string                  `json:"technicianId"`
	TechnicianName *string                  `json:"technicianName"`
	AssignedBy     *string                  `json:"assignedBy"`
	Status         *domain.AssignmentStatus `json:"status"`
	Notes          *string                  `json:"notes"`
}

// Validate implements input validation.
func (in AssignmentInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("testId", in.TestID, !partial, "ID de prueba requerido")
	c.NonEmpty("technicianId", in.TechnicianID, !partial, "ID de técnico requerido")
	c.NonEmpty("technicianName", in.TechnicianName, !partial, "Nombre de técnico requerido")
	c.NonEmpty("assignedBy", in.AssignedBy, !partial, "Asignado por requerido")
	validation.OneOf(c, "status", in.Status, !partial, domain.AssignmentStatuses)
	return c.Err()
}

func (in AssignmentInput) apply(a *domain.Assignment) {
	set(&a.TestID, in.TestID)
	set(&a.ClientTestID, in.ClientTestID)
	set(&a.RecordID, in.RecordID)
	set(&a.TechnicianID, in.TechnicianID)
	set(&a.TechnicianName, in.TechnicianName)
	set(&a.AssignedBy, in.AssignedBy)
	set(&a.Status, in.Status)
	set(&a.Notes, in.Notes)
}

// UserInput is the writable part of a User. Password is plaintext on the wire
// and only its hash is stored.
type UserInput struct {
	Name        *string   `json:"name"`
	Role        *string   `json:"role"`
	Email       *string   `json:"email"`
	Password    *string   `json:"password"`
	LabID       *string   `json:"labId"`
	Permissions *[]string `json:"permissions"`
}

// Validate implements input validation.
func (in UserInput) Validate(partial bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, !partial, "Nombre requerido")
	c.NonEmpty("role", in.Role, !partial, "Rol requerido")
	c.Email("email", in.Email, !partial, validation.MsgInvalidEmail)
	c.MinLen("password", in.Password, 6, !partial, "Contraseña debe tener al menos 6 caracteres")
	return c.Err()
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Validate implements input validation.
func (in LoginInput) Validate(bool) error {
	c := validation.New()
	c.Email("email", in.Email, true, validation.MsgInvalidEmail)
	c.MinLen("password", in.Password, 1, true, "Contraseña requerida")
	return c.Err()
}

// ActivityInput is an explicitly posted audit record.
type ActivityInput struct {
	UserID      *string                  `json:"userId"`
	UserName    *string                  `json:"userName"`
	UserRole    *string                  `json:"userRole"`
	Action      *string                  `json:"action"`
	Description *string                  `json:"description"`
	Category    *domain.ActivityCategory `json:"category"`
	RelatedID   *string                  `json:"relatedId"`
	RelatedName *string                  `json:"relatedName"`
	Metadata    map[string]any           `json:"metadata"`
}

// Validate implements input validation.
func (in ActivityInput) Validate(bool) error {
	c := validation.New()
	c.NonEmpty("userId", in.UserID, true, "ID de usuario requerido")
	c.NonEmpty("userName", in.UserName, true, "Nombre de usuario requerido")
	c.NonEmpty("userRole", in.UserRole, true, "Rol de usuario requerido")
	c.NonEmpty("action", in.Action, true, "Acción requerida")
	c.NonEmpty("description", in.Description, true, "Descripción requerida")
	validation.OneOf(c, "category", in.Category, true, domain.ActivityCategories)
	return c.Err()
}

func (in ActivityInput) activity() domain.Activity {
	var a domain.Activity
	set(&a.UserID, in.UserID)
	set(&a.UserName, in.UserName)
	set(&a.UserRole, in.UserRole)
	set(&a.Action, in.Action)
	set(&a.Description, in.Description)
	set(&a.Category, in.Category)
	set(&a.RelatedID, in.RelatedID)
	set(&a.RelatedName, in.RelatedName)
	a.Metadata = in.Metadata
	return a
}
