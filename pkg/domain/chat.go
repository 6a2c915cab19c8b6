package domain

import "time"

// ChannelType classifies chat channels.
type ChannelType string

const (
	ChannelLaboratory ChannelType = "laboratory"
	ChannelGeneral    ChannelType = "general"
	ChannelDirect     ChannelType = "direct"
)

// ChannelTypes lists every accepted channel type.
var ChannelTypes = []ChannelType{ChannelLaboratory, ChannelGeneral, ChannelDirect}

// MessageType classifies chat messages.
type MessageType string

const (
	MessageText       MessageType = "message"
	MessageSystem     MessageType = "system"
	MessageLabRequest MessageType = "lab-request"
)

// MessageTypes lists every accepted message type.
var MessageTypes = []MessageType{MessageText, MessageSystem, MessageLabRequest}

// RequestPriority ranks inter-lab requests.
type RequestPriority string

const (
	PriorityNormal   RequestPriority = "normal"
	PriorityUrgent   RequestPriority = "urgent"
	PriorityCritical RequestPriority = "critical"
)

// RequestPriorities lists every accepted inter-lab priority.
var RequestPriorities = []RequestPriority{PriorityNormal, PriorityUrgent, PriorityCritical}

// RequestStatus tracks an inter-lab request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

// RequestStatuses lists every accepted inter-lab request status.
var RequestStatuses = []RequestStatus{RequestPending, RequestAccepted, RequestRejected, RequestCompleted}

// Protected channel identifiers. They can never be deleted.
const (
	ChannelGeneralID  = "general"
	ChannelInterLabID = "inter-lab"
)

// IsProtectedChannel reports whether id names a system channel.
func IsProtectedChannel(id string) bool {
	return id == ChannelGeneralID || id == ChannelInterLabID
}

// InterLabRequest is embedded in lab-request messages.
type InterLabRequest struct {
	FromLabID   string          `json:"fromLabId"`
	ToLabID     string          `json:"toLabId"`
	FromLabName string          `json:"fromLabName"`
	ToLabName   string          `json:"toLabName"`
	TestType    string          `json:"testType"`
	ClientName  string          `json:"clientName"`
	Priority    RequestPriority `json:"priority"`
	Status      RequestStatus   `json:"status"`
	RequestedBy string          `json:"requestedBy"`
	Notes       string          `json:"notes"`
}

// ChatMessage is a message posted to a channel. Sender fields are copies taken at send time.
type ChatMessage struct {
	ID         string           `json:"id"`
	ChannelID  string           `json:"channelId"`
	UserID     string           `json:"userId"`
	UserName   string           `json:"userName"`
	UserRole   string           `json:"userRole"`
	Content    string           `json:"content"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       MessageType      `json:"type"`
	LabRequest *InterLabRequest `json:"labRequest,omitempty"`
}

// ChatChannel groups messages. LastMessage caches the newest message.
type ChatChannel struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         ChannelType  `json:"type"`
	LabID        string       `json:"labId,omitempty"`
	Participants []string     `json:"participants"`
	LastMessage  *ChatMessage `json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	CreatedBy    string       `json:"createdBy"`
}

// ChatUser is a chat roster entry with presence.
type ChatUser struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Email    string    `json:"email"`
	IsOnline bool      `json:"isOnline"`
	LabID    string    `json:"labId"`
	LastSeen time.Time `json:"lastSeen"`
}

// ChatStats summarizes the chat store.
type ChatStats struct {
	TotalMessages int        `json:"totalMessages"`
	TotalChannels int        `json:"totalChannels"`
	TotalUsers    int        `json:"totalUsers"`
	OnlineUsers   int        `json:"onlineUsers"`
	LastActivity  *time.Time `json:"lastActivity"`
}
