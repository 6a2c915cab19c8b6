package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"alquimist/internal/adapters/httpapi"
	"alquimist/internal/chat"
	"alquimist/internal/core"
	"alquimist/internal/infra/blob/memory"
	"alquimist/internal/seed"
	"alquimist/pkg/domain"
)

type envelope struct {
	Success    bool                `json:"success"`
	Data       json.RawMessage     `json:"data"`
	User       json.RawMessage     `json:"user"`
	Message    string              `json:"message"`
	Pagination *httpapi.Pagination `json:"pagination"`
	Deleted    *int                `json:"deletedCount"`
	Warnings   []domain.Violation  `json:"warnings"`
	Error      string              `json:"error"`
	Details    []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

type fixture struct {
	handler *httpapi.Handler
	svc     *core.Service
	chat    *chat.Store
	reg     *prometheus.Registry
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithBcryptCost(bcrypt.MinCost))
	ds, err := seed.Load()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if _, err := seed.Apply(ctx, svc, ds); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	chatStore, err := chat.Open(filepath.Join(t.TempDir(), "chat.json"),
		chat.WithSeed(ds.ChatSnapshot(time.Now().UTC())),
		chat.WithBlobStore(memory.New()))
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics, err := httpapi.NewMetrics(reg)
	if err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	h := httpapi.NewHandler(svc, chatStore,
		httpapi.WithMetrics(metrics, reg),
		httpapi.WithOpenAPI([]byte("openapi: 3.1.0\n")),
		httpapi.WithVersion("1.0.0"))
	return fixture{handler: h, svc: svc, chat: chatStore, reg: reg}
}

func (f fixture) do(t *testing.T, method, target string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)

	var env envelope
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", resp.Body.String(), err)
		}
	}
	return resp, env
}

func decodeData[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return out
}

func TestLogin(t *testing.T) {
	f := setup(t)

	resp, env := f.do(t, http.MethodPost, "/api/auth", map[string]string{"email": "admin@alquimist.com", "password": "admin123"})
	if resp.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected login response %d %s", resp.Code, resp.Body.String())
	}
	user := decodeData[map[string]any](t, env.User)
	if user["role"] != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %v", user["role"])
	}
	if _, leaked := user["password"]; leaked || strings.Contains(resp.Body.String(), "password") {
		t.Fatalf("password must never be serialized: %s", resp.Body.String())
	}

	resp, env = f.do(t, http.MethodPost, "/api/auth", map[string]string{"email": "admin@alquimist.com", "password": "wrong"})
	if resp.Code != http.StatusUnauthorized || env.Error != "Credenciales inválidas" {
		t.Fatalf("expected 401, got %d %s", resp.Code, resp.Body.String())
	}

	resp, env = f.do(t, http.MethodDelete, "/api/auth?userId=admin-1", nil)
	if resp.Code != http.StatusOK || env.Message != "Logout exitoso" {
		t.Fatalf("unexpected logout response %d %s", resp.Code, resp.Body.String())
	}
	for _, u := range f.chat.Users() {
		if u.ID == "admin-1" && u.IsOnline {
			t.Fatalf("expected chat presence cleared on logout")
		}
	}
}

func TestActivityPagination(t *testing.T) {
	f := setup(t)

	resp, env := f.do(t, http.MethodGet, "/api/activities?limit=2&offset=0", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	items := decodeData[[]domain.Activity](t, env.Data)
	if len(items) != 2 || env.Pagination == nil || env.Pagination.Total != 5 || !env.Pagination.HasMore {
		t.Fatalf("unexpected first page %d items, %+v", len(items), env.Pagination)
	}
	if !items[0].Timestamp.After(items[1].Timestamp) {
		t.Fatalf("expected newest first")
	}

	_, env = f.do(t, http.MethodGet, "/api/activities?offset=4&limit=2", nil)
	items = decodeData[[]domain.Activity](t, env.Data)
	if len(items) != 1 || env.Pagination.HasMore {
		t.Fatalf("unexpected last page %d items, %+v", len(items), env.Pagination)
	}

	resp, env = f.do(t, http.MethodGet, "/api/activities?limit=dos", nil)
	if resp.Code != http.StatusBadRequest || len(env.Details) != 1 || env.Details[0].Field != "limit" {
		t.Fatalf("expected limit rejected, got %d %s", resp.Code, resp.Body.String())
	}

	_, env = f.do(t, http.MethodGet, "/api/activities?limit=0", nil)
	if env.Pagination.Limit != core.DefaultActivityLimit || len(decodeData[[]domain.Activity](t, env.Data)) != 5 {
		t.Fatalf("expected zero limit to use the default page size, got %+v", env.Pagination)
	}

	resp, env = f.do(t, http.MethodDelete, "/api/activities?days=0", nil)
	if resp.Code != http.StatusOK || decodeData[map[string]int](t, env.Data)["deletedCount"] != 5 || env.Deleted == nil || *env.Deleted != 5 {
		t.Fatalf("unexpected purge response %d %s", resp.Code, resp.Body.String())
	}
}

func TestLaboratoryCascadeAndIdempotentDelete(t *testing.T) {
	f := setup(t)

	resp, _ := f.do(t, http.MethodDelete, "/api/laboratories?id=1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete lab: %d %s", resp.Code, resp.Body.String())
	}
	resp, env := f.do(t, http.MethodGet, "/api/laboratories/1/machines", nil)
	if resp.Code != http.StatusNotFound || env.Error != "Laboratorio no encontrado" {
		t.Fatalf("expected machines gone with lab, got %d %s", resp.Code, resp.Body.String())
	}
	_, env = f.do(t, http.MethodGet, "/api/inventory", nil)
	groups := decodeData[[]core.LabInventory](t, env.Data)
	if len(groups) != 1 || groups[0].LabID != "2" {
		t.Fatalf("expected only lab 2 inventory, got %+v", groups)
	}

	resp, env = f.do(t, http.MethodDelete, "/api/laboratories?id=1", nil)
	if resp.Code != http.StatusNotFound || env.Error != "Laboratorio no encontrado" {
		t.Fatalf("expected second delete not found, got %d %s", resp.Code, resp.Body.String())
	}
	resp, env = f.do(t, http.MethodDelete, "/api/laboratories", nil)
	if resp.Code != http.StatusBadRequest || env.Error != "ID de laboratorio requerido" {
		t.Fatalf("expected missing id rejected, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestCreateAndUpdateLaboratory(t *testing.T) {
	f := setup(t)

	resp, env := f.do(t, http.MethodPost, "/api/laboratories", map[string]string{})
	if resp.Code != http.StatusBadRequest || env.Error != "Datos inválidos" || len(env.Details) != 2 {
		t.Fatalf("expected two field errors, got %d %s", resp.Code, resp.Body.String())
	}

	resp, env = f.do(t, http.MethodPost, "/api/laboratories",
		map[string]string{"name": "Lab Este", "address": "Calle 9"},
		httpapi.HeaderUserID, "admin-1", httpapi.HeaderUserName, "Dr. Ana García", httpapi.HeaderUserRole, domain.RoleAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create lab: %d %s", resp.Code, resp.Body.String())
	}
	lab := decodeData[core.LaboratoryView](t, env.Data)
	if lab.ID == "" || lab.Machines == nil || lab.Inventory == nil {
		t.Fatalf("unexpected lab %+v", lab)
	}

	resp, env = f.do(t, http.MethodPut, "/api/laboratories", map[string]string{"id": lab.ID, "address": "Calle 10"})
	if resp.Code != http.StatusOK {
		t.Fatalf("update lab: %d %s", resp.Code, resp.Body.String())
	}
	updated := decodeData[core.LaboratoryView](t, env.Data)
	if updated.Name != "Lab Este" || updated.Address != "Calle 10" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}

	_, env = f.do(t, http.MethodGet, "/api/activities?category=lab_management", nil)
	if env.Pagination.Total != 2 {
		t.Fatalf("expected the seeded and the audited lab activity, got %d", env.Pagination.Total)
	}
}

func TestTypeMismatchIsFieldError(t *testing.T) {
	f := setup(t)
	resp, env := f.do(t, http.MethodPost, "/api/inventory", `{"labId":"1","name":"Guantes","quantity":"muchos"}`)
	if resp.Code != http.StatusBadRequest || len(env.Details) != 1 || env.Details[0].Field != "quantity" {
		t.Fatalf("expected quantity type error, got %d %s", resp.Code, resp.Body.String())
	}
	resp, _ = f.do(t, http.MethodPost, "/api/inventory", `{"labId":`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed body rejected, got %d", resp.Code)
	}
}

func TestInventoryWarningsDoNotBlock(t *testing.T) {
	f := setup(t)
	resp, env := f.do(t, http.MethodPost, "/api/inventory", map[string]any{
		"labId": "2", "name": "Guantes", "category": "Material", "quantity": 0, "unit": "cajas",
		"minStock": 5, "expirationDate": "N/A", "supplier": "MedSupply", "status": "disponible",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create item: %d %s", resp.Code, resp.Body.String())
	}
	if len(env.Warnings) != 1 || env.Warnings[0].Rule != core.RuleInventoryStatus {
		t.Fatalf("expected inventory status warning, got %+v", env.Warnings)
	}
	resp, env = f.do(t, http.MethodPut, "/api/inventory", map[string]any{"labId": "2", "quantity": 3})
	if resp.Code != http.StatusBadRequest || env.Error != "ID de laboratorio e item requeridos" {
		t.Fatalf("expected item id required, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestClientTestUpdateSelectsByTestID(t *testing.T) {
	f := setup(t)
	resp, env := f.do(t, http.MethodPut, "/api/clients/2/tests", map[string]string{"testId": "ct2", "status": "completada"})
	if resp.Code != http.StatusOK {
		t.Fatalf("update client test: %d %s", resp.Code, resp.Body.String())
	}
	test := decodeData[domain.ClientTest](t, env.Data)
	if test.ID != "ct2" || test.TestID != "t2" || test.Status != domain.TestCompleted {
		t.Fatalf("unexpected client test %+v", test)
	}
	resp, env = f.do(t, http.MethodPut, "/api/clients/2/tests", map[string]string{"testId": "ct9"})
	if resp.Code != http.StatusNotFound || env.Error != "Prueba no encontrada" {
		t.Fatalf("expected test not found, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestUsersRejectDuplicateEmail(t *testing.T) {
	f := setup(t)
	resp, env := f.do(t, http.MethodPost, "/api/users", map[string]string{
		"name": "Otra Admin", "role": domain.RoleAdmin, "email": "admin@alquimist.com", "password": "secreto1",
	})
	if resp.Code != http.StatusBadRequest || env.Error != "El email ya está registrado" {
		t.Fatalf("expected duplicate email rejected, got %d %s", resp.Code, resp.Body.String())
	}
	_, env = f.do(t, http.MethodGet, "/api/users?role=T%C3%A9cnico", nil)
	users := decodeData[[]map[string]any](t, env.Data)
	if len(users) != 1 || users[0]["id"] != "tecnico-1" {
		t.Fatalf("unexpected role filter %+v", users)
	}
}

func rosterEntry(t *testing.T, f fixture, id string) (domain.ChatUser, bool) {
	t.Helper()
	_, env := f.do(t, http.MethodGet, "/api/chat?type=users", nil)
	for _, u := range decodeData[[]domain.ChatUser](t, env.Data) {
		if u.ID == id {
			return u, true
		}
	}
	return domain.ChatUser{}, false
}

func TestUserLifecycleFollowsChatRoster(t *testing.T) {
	f := setup(t)
	resp, env := f.do(t, http.MethodPost, "/api/users", map[string]string{
		"name": "Dra. Nueva", "role": domain.RoleTechnician, "email": "nueva@alquimist.com", "password": "secreto1", "labId": "1",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", resp.Code, resp.Body.String())
	}
	created := decodeData[domain.UserProfile](t, env.Data)
	entry, found := rosterEntry(t, f, created.ID)
	if !found || entry.IsOnline || entry.Email != "nueva@alquimist.com" || entry.LabID != "1" {
		t.Fatalf("expected offline roster entry for new user, got %+v (found %v)", entry, found)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/auth", map[string]string{"email": "nueva@alquimist.com", "password": "secreto1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: %d %s", resp.Code, resp.Body.String())
	}
	if entry, found = rosterEntry(t, f, created.ID); !found || !entry.IsOnline {
		t.Fatalf("expected new user online in roster, got %+v (found %v)", entry, found)
	}

	resp, _ = f.do(t, http.MethodPut, "/api/users", map[string]string{"id": created.ID, "name": "Dra. Renombrada"})
	if resp.Code != http.StatusOK {
		t.Fatalf("update user: %d %s", resp.Code, resp.Body.String())
	}
	if entry, _ = rosterEntry(t, f, created.ID); entry.Name != "Dra. Renombrada" || !entry.IsOnline {
		t.Fatalf("expected roster to follow the rename, got %+v", entry)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/users?id="+created.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete user: %d %s", resp.Code, resp.Body.String())
	}
	if _, found = rosterEntry(t, f, created.ID); found {
		t.Fatalf("expected deleted user removed from roster")
	}
}

func TestChatAuditWithoutNameHeader(t *testing.T) {
	f := setup(t)
	resp, _ := f.do(t, http.MethodPut, "/api/chat", map[string]any{
		"name": "Turno noche", "type": "general", "participants": []string{"tecnico-1"},
	}, httpapi.HeaderUserID, "tecnico-1")
	if resp.Code != http.StatusCreated {
		t.Fatalf("create channel: %d %s", resp.Code, resp.Body.String())
	}
	_, env := f.do(t, http.MethodGet, "/api/activities?category=communication&userId=tecnico-1", nil)
	items := decodeData[[]domain.Activity](t, env.Data)
	if len(items) != 1 || items[0].Action != "create_channel" || items[0].UserName != "tecnico-1" ||
		items[0].Description != "tecnico-1 creó el canal Turno noche" {
		t.Fatalf("expected channel creation audited under the actor id, got %+v", items)
	}
}

func TestChatDispatch(t *testing.T) {
	f := setup(t)

	resp, env := f.do(t, http.MethodDelete, "/api/chat?channelId=general", nil)
	if resp.Code != http.StatusForbidden || env.Error != "No se puede eliminar un canal del sistema" {
		t.Fatalf("expected protected channel, got %d %s", resp.Code, resp.Body.String())
	}

	resp, env = f.do(t, http.MethodPut, "/api/chat", map[string]any{
		"name": "Lab Norte", "type": "laboratory", "labId": "1", "participants": []string{"admin-1"},
	}, httpapi.HeaderUserID, "admin-1", httpapi.HeaderUserName, "Dr. Ana García", httpapi.HeaderUserRole, domain.RoleAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create channel: %d %s", resp.Code, resp.Body.String())
	}
	channel := decodeData[domain.ChatChannel](t, env.Data)

	resp, _ = f.do(t, http.MethodPost, "/api/chat", map[string]string{
		"channelId": channel.ID, "userId": "admin-1", "userName": "Dr. Ana García", "userRole": domain.RoleAdmin,
		"content": "Hola equipo", "type": "message",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("send message: %d %s", resp.Code, resp.Body.String())
	}
	resp, env = f.do(t, http.MethodPost, "/api/chat", map[string]string{
		"channelId": "nope", "userId": "admin-1", "userName": "Dr. Ana García", "userRole": domain.RoleAdmin,
		"content": "Hola", "type": "message",
	})
	if resp.Code != http.StatusNotFound || env.Error != "Canal no encontrado" {
		t.Fatalf("expected unknown channel rejected, got %d %s", resp.Code, resp.Body.String())
	}

	_, env = f.do(t, http.MethodGet, "/api/chat?channelId="+channel.ID, nil)
	if msgs := decodeData[[]domain.ChatMessage](t, env.Data); len(msgs) != 1 {
		t.Fatalf("expected one channel message, got %d", len(msgs))
	}
	_, env = f.do(t, http.MethodGet, "/api/chat?type=stats", nil)
	if stats := decodeData[domain.ChatStats](t, env.Data); stats.TotalMessages != 2 || stats.TotalChannels != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	_, env = f.do(t, http.MethodGet, "/api/chat", nil)
	if all := decodeData[chat.Snapshot](t, env.Data); len(all.Users) != 4 {
		t.Fatalf("expected full chat state, got %+v", all)
	}

	resp, env = f.do(t, http.MethodPut, "/api/chat", map[string]any{"action": "update_user_status", "userId": "patologa-1", "isOnline": true})
	if resp.Code != http.StatusOK || !decodeData[domain.ChatUser](t, env.Data).IsOnline {
		t.Fatalf("update status: %d %s", resp.Code, resp.Body.String())
	}
	resp, _ = f.do(t, http.MethodPut, "/api/chat", map[string]any{"action": "update_user_status", "userId": "patologa-1"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected missing isOnline rejected, got %d", resp.Code)
	}
	resp, env = f.do(t, http.MethodPut, "/api/chat", map[string]any{"action": "backup"})
	if resp.Code != http.StatusCreated || !strings.HasPrefix(decodeData[map[string]any](t, env.Data)["key"].(string), "chat-backup-") {
		t.Fatalf("backup: %d %s", resp.Code, resp.Body.String())
	}
	resp, _ = f.do(t, http.MethodPut, "/api/chat", map[string]any{"action": "explode"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown action rejected, got %d", resp.Code)
	}

	resp, _ = f.do(t, http.MethodDelete, "/api/chat?channelId="+channel.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete channel: %d %s", resp.Code, resp.Body.String())
	}
	if msgs := f.chat.Messages(channel.ID); len(msgs) != 0 {
		t.Fatalf("expected channel messages removed, got %d", len(msgs))
	}
	resp, env = f.do(t, http.MethodDelete, "/api/chat?action=cleanup_messages", nil)
	if resp.Code != http.StatusOK || decodeData[map[string]int](t, env.Data)["deletedCount"] != 0 || env.Deleted == nil || *env.Deleted != 0 {
		t.Fatalf("cleanup: %d %s", resp.Code, resp.Body.String())
	}

	_, env = f.do(t, http.MethodGet, "/api/activities?category=communication", nil)
	if env.Pagination.Total != 3 {
		t.Fatalf("expected channel create and delete audited next to the seed, got %d", env.Pagination.Total)
	}
}

func TestOperationalRoutes(t *testing.T) {
	f := setup(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"version":"1.0.0"`) {
		t.Fatalf("healthz: %d %s", resp.Code, resp.Body.String())
	}
	resp, _ = f.do(t, http.MethodGet, "/api/openapi.yaml", nil)
	if resp.Code != http.StatusOK || !strings.HasPrefix(resp.Body.String(), "openapi:") {
		t.Fatalf("openapi: %d %s", resp.Code, resp.Body.String())
	}
	resp, _ = f.do(t, http.MethodGet, "/api/laboratories", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list labs: %d", resp.Code)
	}

	families, err := f.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var labRequests float64
	for _, fam := range families {
		if fam.GetName() != "alquimist_http_requests_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == "GET /api/laboratories" {
					labRequests += m.GetCounter().GetValue()
				}
			}
		}
	}
	if labRequests != 1 {
		t.Fatalf("expected one labeled lab request, got %v", labRequests)
	}

	resp, _ = f.do(t, http.MethodGet, "/metrics", nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "alquimist_http_requests_total") {
		t.Fatalf("metrics endpoint: %d", resp.Code)
	}
}
