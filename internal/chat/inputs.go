package chat

import (
	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

// LabRequestInput is the inter-lab request embedded in a lab-request message.
// Every field is required; free-text fields may be empty.
type LabRequestInput struct {
	FromLabID   *string                 `json:"fromLabId"`
	ToLabID     *string                 `json:"toLabId"`
	FromLabName *string                 `json:"fromLabName"`
	ToLabName   *string                 `json:"toLabName"`
	TestType    *string                 `json:"testType"`
	ClientName  *string                 `json:"clientName"`
	Priority    *domain.RequestPriority `json:"priority"`
	Status      *domain.RequestStatus   `json:"status"`
	RequestedBy *string                 `json:"requestedBy"`
	Notes       *string                 `json:"notes"`
}

func (in LabRequestInput) validate(c *validation.Collector) {
	validation.Present(c, "fromLabId", in.FromLabID, true)
	validation.Present(c, "toLabId", in.ToLabID, true)
	validation.Present(c, "fromLabName", in.FromLabName, true)
	validation.Present(c, "toLabName", in.ToLabName, true)
	validation.Present(c, "testType", in.TestType, true)
	validation.Present(c, "clientName", in.ClientName, true)
	validation.OneOf(c, "priority", in.Priority, true, domain.RequestPriorities)
	validation.OneOf(c, "status", in.Status, true, domain.RequestStatuses)
	validation.Present(c, "requestedBy", in.RequestedBy, true)
	validation.Present(c, "notes", in.Notes, true)
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func (in LabRequestInput) request() *domain.InterLabRequest {
	return &domain.InterLabRequest{
		FromLabID:   deref(in.FromLabID),
		ToLabID:     deref(in.ToLabID),
		FromLabName: deref(in.FromLabName),
		ToLabName:   deref(in.ToLabName),
		TestType:    deref(in.TestType),
		ClientName:  deref(in.ClientName),
		Priority:    deref(in.Priority),
		Status:      deref(in.Status),
		RequestedBy: deref(in.RequestedBy),
		Notes:       deref(in.Notes),
	}
}

// MessageInput is a message posted to a channel.
type MessageInput struct {
	ChannelID  *string             `json:"channelId"`
	UserID     *string             `json:"userId"`
	UserName   *string             `json:"userName"`
	UserRole   *string             `json:"userRole"`
	Content    *string             `json:"content"`
	Type       *domain.MessageType `json:"type"`
	LabRequest *LabRequestInput    `json:"labRequest"`
}

// Validate implements input validation.
func (in MessageInput) Validate(bool) error {
	c := validation.New()
	c.NonEmpty("channelId", in.ChannelID, true, "ID de canal requerido")
	c.NonEmpty("userId", in.UserID, true, "ID de usuario requerido")
	c.NonEmpty("userName", in.UserName, true, "Nombre de usuario requerido")
	c.NonEmpty("userRole", in.UserRole, true, "Rol de usuario requerido")
	c.NonEmpty("content", in.Content, true, "Contenido requerido")
	validation.OneOf(c, "type", in.Type, true, domain.MessageTypes)
	if in.LabRequest != nil {
		in.LabRequest.validate(c.Nested("labRequest"))
	}
	return c.Err()
}

func (in MessageInput) message() domain.ChatMessage {
	m := domain.ChatMessage{
		ChannelID: deref(in.ChannelID),
		UserID:    deref(in.UserID),
		UserName:  deref(in.UserName),
		UserRole:  deref(in.UserRole),
		Content:   deref(in.Content),
		Type:      deref(in.Type),
	}
	if in.LabRequest != nil {
		m.LabRequest = in.LabRequest.request()
	}
	return m
}

// ChannelInput creates a channel.
type ChannelInput struct {
	Name         *string             `json:"name"`
	Type         *domain.ChannelType `json:"type"`
	LabID        *string             `json:"labId"`
	Participants *[]string           `json:"participants"`
}

// Validate implements input validation.
func (in ChannelInput) Validate(bool) error {
	c := validation.New()
	c.NonEmpty("name", in.Name, true, "Nombre requerido")
	validation.OneOf(c, "type", in.Type, true, domain.ChannelTypes)
	validation.Present(c, "participants", in.Participants, true)
	return c.Err()
}

// UserStatusInput toggles a roster entry's presence.
type UserStatusInput struct {
	UserID   *string `json:"userId"`
	IsOnline *bool   `json:"isOnline"`
}

// Validate implements input validation.
func (in UserStatusInput) Validate(bool) error {
	c := validation.New()
	c.NonEmpty("userId", in.UserID, true, "ID de usuario requerido")
	validation.Present(c, "isOnline", in.IsOnline, true)
	return c.Err()
}
