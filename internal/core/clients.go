package core

import (
	"context"
	"fmt"

	"alquimist/pkg/domain"
)

// ClientView is a client with its ordered tests.
type ClientView struct {
	domain.Client
	Tests []domain.ClientTest `json:"tests"`
}

func clientView(v TransactionView, c domain.Client) ClientView {
	return ClientView{Client: c, Tests: nonNil(v.ListClientTests(c.ID))}
}

func requireClient(v TransactionView, id string) (domain.Client, error) {
	c, ok := v.FindClient(id)
	if !ok {
		return domain.Client{}, domain.ErrNotFound{Entity: EntityClient, ID: id}
	}
	return c, nil
}

// ListClients returns every client with nested tests.
func (s *Service) ListClients(ctx context.Context) ([]ClientView, error) {
	var out []ClientView
	err := s.view(ctx, "list_clients", func(v TransactionView) error {
		clients := v.ListClients()
		out = make([]ClientView, len(clients))
		for i, c := range clients {
			out[i] = clientView(v, c)
		}
		return nil
	})
	return out, err
}

// GetClient returns one client view.
func (s *Service) GetClient(ctx context.Context, id string) (ClientView, error) {
	var out ClientView
	err := s.view(ctx, "get_client", func(v TransactionView) error {
		c, err := requireClient(v, id)
		if err != nil {
			return err
		}
		out = clientView(v, c)
		return nil
	})
	return out, err
}

// CreateClient persists a new client.
func (s *Service) CreateClient(ctx context.Context, in ClientInput) (ClientView, Result, error) {
	const op = "create_client"
	if err := in.Validate(false); err != nil {
		return ClientView{}, Result{}, s.reject(ctx, op, err)
	}
	var out ClientView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var c domain.Client
		in.apply(&c)
		created, err := tx.CreateClient(c)
		if err != nil {
			return err
		}
		out = clientView(tx, created)
		return s.audit(ctx, tx, auditEntry{
			action:      "add_client",
			description: fmt.Sprintf("Agregó cliente %s", created.Name),
			category:    domain.CategoryTestManagement,
			relatedID:   created.ID,
			relatedName: created.Name,
		})
	})
	return out, res, err
}

// UpdateClient merges the supplied fields into a client.
func (s *Service) UpdateClient(ctx context.Context, id string, in ClientInput) (ClientView, Result, error) {
	const op = "update_client"
	if err := in.Validate(true); err != nil {
		return ClientView{}, Result{}, s.reject(ctx, op, err)
	}
	var out ClientView
	res, err := s.run(ctx, op, func(tx Transaction) error {
		updated, err := tx.UpdateClient(id, func(c *domain.Client) error {
			in.apply(c)
			return nil
		})
		if err != nil {
			return err
		}
		out = clientView(tx, updated)
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_client",
			description: fmt.Sprintf("Editó cliente %s", updated.Name),
			category:    domain.CategoryTestManagement,
			relatedID:   updated.ID,
			relatedName: updated.Name,
		})
	})
	return out, res, err
}

// DeleteClient removes a client and its tests.
func (s *Service) DeleteClient(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_client", func(tx Transaction) error {
		c, err := requireClient(tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteClient(id); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_client",
			description: "Eliminó cliente",
			category:    domain.CategoryTestManagement,
			relatedID:   id,
			relatedName: c.Name,
		})
	})
}

// ListClientTests returns the tests ordered for a client.
func (s *Service) ListClientTests(ctx context.Context, clientID string) ([]domain.ClientTest, error) {
	var out []domain.ClientTest
	err := s.view(ctx, "list_client_tests", func(v TransactionView) error {
		if _, err := requireClient(v, clientID); err != nil {
			return err
		}
		out = nonNil(v.ListClientTests(clientID))
		return nil
	})
	return out, err
}

// CreateClientTest orders a test for a client.
func (s *Service) CreateClientTest(ctx context.Context, clientID string, in ClientTestInput) (domain.ClientTest, Result, error) {
	const op = "create_client_test"
	if err := in.Validate(false); err != nil {
		return domain.ClientTest{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.ClientTest
	res, err := s.run(ctx, op, func(tx Transaction) error {
		c, err := requireClient(tx, clientID)
		if err != nil {
			return err
		}
		t := domain.ClientTest{ClientID: clientID}
		in.apply(&t)
		out, err = tx.CreateClientTest(t)
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "assign_test",
			description: fmt.Sprintf("Asignó prueba %s a %s", out.TestName, c.Name),
			category:    domain.CategoryTestManagement,
			relatedID:   out.ID,
			relatedName: out.TestName,
		})
	})
	return out, res, err
}

// UpdateClientTest merges the supplied fields into a client test. Supplied
// results replace the whole list.
func (s *Service) UpdateClientTest(ctx context.Context, clientID, testID string, in ClientTestInput) (domain.ClientTest, Result, error) {
	const op = "update_client_test"
	if err := in.Validate(true); err != nil {
		return domain.ClientTest{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.ClientTest
	res, err := s.run(ctx, op, func(tx Transaction) error {
		if _, err := requireClient(tx, clientID); err != nil {
			return err
		}
		var err error
		out, err = tx.UpdateClientTest(clientID, testID, func(t *domain.ClientTest) error {
			in.apply(t)
			return nil
		})
		if err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "edit_test",
			description: fmt.Sprintf("Actualizó prueba %s", out.TestName),
			category:    domain.CategoryTestManagement,
			relatedID:   out.ID,
			relatedName: out.TestName,
		})
	})
	return out, res, err
}

// DeleteClientTest removes a test from a client.
func (s *Service) DeleteClientTest(ctx context.Context, clientID, testID string) (Result, error) {
	return s.run(ctx, "delete_client_test", func(tx Transaction) error {
		if _, err := requireClient(tx, clientID); err != nil {
			return err
		}
		t, ok := tx.FindClientTest(clientID, testID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityClientTest, ID: testID}
		}
		if err := tx.DeleteClientTest(clientID, testID); err != nil {
			return err
		}
		return s.audit(ctx, tx, auditEntry{
			action:      "delete_test",
			description: fmt.Sprintf("Eliminó prueba %s", t.TestName),
			category:    domain.CategoryTestManagement,
			relatedID:   testID,
			relatedName: t.TestName,
		})
	})
}
