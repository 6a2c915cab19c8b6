// Package seed loads the embedded starter dataset into an empty store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"alquimist/internal/chat"
	"alquimist/internal/core"
	"alquimist/pkg/domain"
)

//go:embed dataset.yaml
var datasetYAML []byte

// Parameter mirrors domain.Parameter with YAML keys.
type Parameter struct {
	ID           string                 `yaml:"id"`
	Name         string                 `yaml:"name"`
	Value        string                 `yaml:"value"`
	Unit         string                 `yaml:"unit"`
	ReferenceMin float64                `yaml:"referenceMin"`
	ReferenceMax float64                `yaml:"referenceMax"`
	Status       domain.ParameterStatus `yaml:"status"`
}

type Record struct {
	ID         string            `yaml:"id"`
	TestName   string            `yaml:"testName"`
	Date       string            `yaml:"date"`
	Status     domain.TestStatus `yaml:"status"`
	Notes      string            `yaml:"notes"`
	Parameters []Parameter       `yaml:"parameters"`
}

type Machine struct {
	ID      string               `yaml:"id"`
	Name    string               `yaml:"name"`
	Type    string               `yaml:"type"`
	Status  domain.MachineStatus `yaml:"status"`
	Records []Record             `yaml:"records"`
}

type InventoryItem struct {
	ID             string                 `yaml:"id"`
	Name           string                 `yaml:"name"`
	Category       string                 `yaml:"category"`
	Quantity       float64                `yaml:"quantity"`
	Unit           string                 `yaml:"unit"`
	MinStock       float64                `yaml:"minStock"`
	ExpirationDate string                 `yaml:"expirationDate"`
	Supplier       string                 `yaml:"supplier"`
	Notes          string                 `yaml:"notes"`
	Status         domain.InventoryStatus `yaml:"status"`
}

type Laboratory struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Address   string          `yaml:"address"`
	Machines  []Machine       `yaml:"machines"`
	Inventory []InventoryItem `yaml:"inventory"`
}

type ClientTest struct {
	ID           string            `yaml:"id"`
	TestID       string            `yaml:"testId"`
	TestName     string            `yaml:"testName"`
	OrderDate    string            `yaml:"orderDate"`
	Status       domain.TestStatus `yaml:"status"`
	Notes        string            `yaml:"notes"`
	AssignedTo   string            `yaml:"assignedTo"`
	AssignedBy   string            `yaml:"assignedBy"`
	AssignedDate string            `yaml:"assignedDate"`
	Results      []Parameter       `yaml:"results"`
}

type Client struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	Email string       `yaml:"email"`
	Phone string       `yaml:"phone"`
	Tests []ClientTest `yaml:"tests"`
}

type Assignment struct {
	ID             string                  `yaml:"id"`
	TestID         string                  `yaml:"testId"`
	ClientTestID   string                  `yaml:"clientTestId"`
	RecordID       string                  `yaml:"recordId"`
	TechnicianID   string                  `yaml:"technicianId"`
	TechnicianName string                  `yaml:"technicianName"`
	AssignedBy     string                  `yaml:"assignedBy"`
	AssignedDate   string                  `yaml:"assignedDate"`
	Status         domain.AssignmentStatus `yaml:"status"`
	Notes          string                  `yaml:"notes"`
}

// User carries a plaintext password that is hashed when the seed is applied.
type User struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	IsOnline bool   `yaml:"isOnline"`
	LabID    string `yaml:"labId"`
}

// Activity is stamped Age before the moment the seed is applied.
type Activity struct {
	ID          string                  `yaml:"id"`
	UserID      string                  `yaml:"userId"`
	UserName    string                  `yaml:"userName"`
	UserRole    string                  `yaml:"userRole"`
	Action      string                  `yaml:"action"`
	Description string                  `yaml:"description"`
	Category    domain.ActivityCategory `yaml:"category"`
	RelatedID   string                  `yaml:"relatedId"`
	RelatedName string                  `yaml:"relatedName"`
	Age         time.Duration           `yaml:"age"`
}

type Channel struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	Type         domain.ChannelType `yaml:"type"`
	LabID        string             `yaml:"labId"`
	Participants []string           `yaml:"participants"`
}

type Message struct {
	ID        string             `yaml:"id"`
	ChannelID string             `yaml:"channelId"`
	UserID    string             `yaml:"userId"`
	UserName  string             `yaml:"userName"`
	UserRole  string             `yaml:"userRole"`
	Content   string             `yaml:"content"`
	Type      domain.MessageType `yaml:"type"`
}

// Dataset is the decoded starter data.
type Dataset struct {
	Laboratories []Laboratory `yaml:"laboratories"`
	Clients      []Client     `yaml:"clients"`
	Assignments  []Assignment `yaml:"assignments"`
	Users        []User       `yaml:"users"`
	Activities   []Activity   `yaml:"activities"`
	Chat         struct {
		Channels []Channel `yaml:"channels"`
		Messages []Message `yaml:"messages"`
	} `yaml:"chat"`
}

// Load decodes the embedded dataset.
func Load() (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(datasetYAML, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode seed dataset: %w", err)
	}
	return ds, nil
}

func parameters(in []Parameter) []domain.Parameter {
	out := make([]domain.Parameter, 0, len(in))
	for _, p := range in {
		out = append(out, domain.Parameter(p))
	}
	return out
}

// Apply writes ds into the service's store in one transaction when the store
// holds no laboratories, clients or users. It reports whether anything was
// written.
func Apply(ctx context.Context, svc *core.Service, ds Dataset) (bool, error) {
	store := svc.Store()
	empty := true
	if err := store.View(ctx, func(v core.TransactionView) error {
		empty = len(v.ListLaboratories()) == 0 && len(v.ListClients()) == 0 && len(v.ListUsers()) == 0
		return nil
	}); err != nil {
		return false, err
	}
	if !empty {
		svc.Logger().Debug("store already populated, skipping seed")
		return false, nil
	}

	hashes := make(map[string]string, len(ds.Users))
	for _, u := range ds.Users {
		hash, err := svc.HashPassword(u.Password)
		if err != nil {
			return false, fmt.Errorf("hash password for %s: %w", u.ID, err)
		}
		hashes[u.ID] = hash
	}

	res, err := store.RunInTransaction(ctx, func(tx core.Transaction) error {
		return write(tx, ds, hashes)
	})
	if err != nil {
		return false, fmt.Errorf("apply seed: %w", err)
	}
	svc.Logger().Info("seeded store",
		zap.Int("laboratories", len(ds.Laboratories)),
		zap.Int("clients", len(ds.Clients)),
		zap.Int("users", len(ds.Users)),
		zap.Int("warnings", len(res.Violations)),
	)
	return true, nil
}

func write(tx core.Transaction, ds Dataset, hashes map[string]string) error {
	for _, l := range ds.Laboratories {
		if _, err := tx.CreateLaboratory(domain.Laboratory{Base: domain.Base{ID: l.ID}, Name: l.Name, Address: l.Address}); err != nil {
			return err
		}
		for _, m := range l.Machines {
			if _, err := tx.CreateMachine(domain.Machine{Base: domain.Base{ID: m.ID}, LabID: l.ID, Name: m.Name, Type: m.Type, Status: m.Status}); err != nil {
				return err
			}
			for _, r := range m.Records {
				if _, err := tx.CreateTestRecord(domain.TestRecord{
					Base:       domain.Base{ID: r.ID},
					LabID:      l.ID,
					MachineID:  m.ID,
					TestName:   r.TestName,
					Date:       r.Date,
					Status:     r.Status,
					Notes:      r.Notes,
					Parameters: parameters(r.Parameters),
				}); err != nil {
					return err
				}
			}
		}
		for _, item := range l.Inventory {
			if _, err := tx.CreateInventoryItem(domain.InventoryItem{
				Base:           domain.Base{ID: item.ID},
				LabID:          l.ID,
				Name:           item.Name,
				Category:       item.Category,
				Quantity:       item.Quantity,
				Unit:           item.Unit,
				MinStock:       item.MinStock,
				ExpirationDate: item.ExpirationDate,
				Supplier:       item.Supplier,
				Notes:          item.Notes,
				Status:         item.Status,
			}); err != nil {
				return err
			}
		}
	}

	for _, c := range ds.Clients {
		if _, err := tx.CreateClient(domain.Client{Base: domain.Base{ID: c.ID}, Name: c.Name, Email: c.Email, Phone: c.Phone}); err != nil {
			return err
		}
		for _, t := range c.Tests {
			if _, err := tx.CreateClientTest(domain.ClientTest{
				Base:      domain.Base{ID: t.ID},
				Assignee:  domain.Assignee{AssignedTo: t.AssignedTo, AssignedBy: t.AssignedBy, AssignedDate: t.AssignedDate},
				ClientID:  c.ID,
				TestID:    t.TestID,
				TestName:  t.TestName,
				OrderDate: t.OrderDate,
				Status:    t.Status,
				Notes:     t.Notes,
				Results:   parameters(t.Results),
			}); err != nil {
				return err
			}
		}
	}

	for _, a := range ds.Assignments {
		if _, err := tx.CreateAssignment(domain.Assignment{
			Base:           domain.Base{ID: a.ID},
			TestID:         a.TestID,
			ClientTestID:   a.ClientTestID,
			RecordID:       a.RecordID,
			TechnicianID:   a.TechnicianID,
			TechnicianName: a.TechnicianName,
			AssignedBy:     a.AssignedBy,
			AssignedDate:   a.AssignedDate,
			Status:         a.Status,
			Notes:          a.Notes,
		}); err != nil {
			return err
		}
	}

	for _, u := range ds.Users {
		if _, err := tx.CreateUser(domain.User{
			Base:         domain.Base{ID: u.ID},
			Name:         u.Name,
			Email:        u.Email,
			Role:         u.Role,
			PasswordHash: hashes[u.ID],
			Permissions:  domain.PermissionsForRole(u.Role),
			IsOnline:     u.IsOnline,
			LabID:        u.LabID,
		}); err != nil {
			return err
		}
	}

	// Activities are prepended, so write the oldest first.
	now := tx.Now()
	for i := len(ds.Activities) - 1; i >= 0; i-- {
		a := ds.Activities[i]
		if _, err := tx.AppendActivity(domain.Activity{
			ID:          a.ID,
			UserID:      a.UserID,
			UserName:    a.UserName,
			UserRole:    a.UserRole,
			Action:      a.Action,
			Description: a.Description,
			Category:    a.Category,
			Timestamp:   now.Add(-a.Age),
			RelatedID:   a.RelatedID,
			RelatedName: a.RelatedName,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ChatSnapshot builds the initial chat state. The roster mirrors the seeded
// users and every message is stamped now.
func (ds Dataset) ChatSnapshot(now time.Time) chat.Snapshot {
	snap := chat.Snapshot{
		Channels: make([]domain.ChatChannel, 0, len(ds.Chat.Channels)),
		Messages: make([]domain.ChatMessage, 0, len(ds.Chat.Messages)),
		Users:    make([]domain.ChatUser, 0, len(ds.Users)),
	}
	last := make(map[string]domain.ChatMessage)
	for _, m := range ds.Chat.Messages {
		msg := domain.ChatMessage{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			UserID:    m.UserID,
			UserName:  m.UserName,
			UserRole:  m.UserRole,
			Content:   m.Content,
			Timestamp: now,
			Type:      m.Type,
		}
		snap.Messages = append(snap.Messages, msg)
		last[m.ChannelID] = msg
	}
	for _, c := range ds.Chat.Channels {
		ch := domain.ChatChannel{
			ID:           c.ID,
			Name:         c.Name,
			Type:         c.Type,
			LabID:        c.LabID,
			Participants: append([]string{}, c.Participants...),
			CreatedAt:    now,
			CreatedBy:    chat.SystemUser,
		}
		if msg, ok := last[c.ID]; ok {
			ch.LastMessage = &msg
		}
		snap.Channels = append(snap.Channels, ch)
	}
	for _, u := range ds.Users {
		snap.Users = append(snap.Users, domain.ChatUser{
			ID:       u.ID,
			Name:     u.Name,
			Role:     u.Role,
			Email:    u.Email,
			IsOnline: u.IsOnline,
			LabID:    u.LabID,
			LastSeen: now,
		})
	}
	return snap
}
