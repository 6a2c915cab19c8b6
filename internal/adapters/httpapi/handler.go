// Package httpapi exposes the laboratory service and the chat store as a
// JSON API under /api.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"alquimist/internal/chat"
	"alquimist/internal/core"
)

// Actor headers identify the caller for server-side audit activities.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

// Handler routes API requests. It is safe for concurrent use.
type Handler struct {
	svc      *core.Service
	chat     *chat.Store
	logger   *zap.Logger
	metrics  *Metrics
	gatherer prometheus.Gatherer
	openapi  []byte
	version  string
	mux      *http.ServeMux
	root     http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records request counts and latency and serves gatherer at /metrics.
func WithMetrics(m *Metrics, gatherer prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.metrics = m
		h.gatherer = gatherer
	}
}

// WithOpenAPI serves document at /api/openapi.yaml.
func WithOpenAPI(document []byte) Option {
	return func(h *Handler) { h.openapi = document }
}

// WithVersion reports version from /healthz.
func WithVersion(version string) Option {
	return func(h *Handler) { h.version = version }
}

// NewHandler wires every route. A nil chat store disables /api/chat.
func NewHandler(svc *core.Service, chatStore *chat.Store, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		chat:   chatStore,
		logger: zap.NewNop(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	h.root = h.recoverPanics(h.withActor(h.observe(h.mux)))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	m := h.mux

	m.HandleFunc("GET /api/laboratories", h.listLaboratories)
	m.HandleFunc("GET /api/laboratories/{id}", h.getLaboratory)
	m.HandleFunc("POST /api/laboratories", h.createLaboratory)
	m.HandleFunc("PUT /api/laboratories", h.updateLaboratory)
	m.HandleFunc("DELETE /api/laboratories", h.deleteLaboratory)

	m.HandleFunc("GET /api/laboratories/{id}/machines", h.listMachines)
	m.HandleFunc("POST /api/laboratories/{id}/machines", h.createMachine)
	m.HandleFunc("PUT /api/laboratories/{id}/machines", h.updateMachine)
	m.HandleFunc("DELETE /api/laboratories/{id}/machines", h.deleteMachine)

	m.HandleFunc("GET /api/laboratories/{id}/machines/{machineId}/records", h.listRecords)
	m.HandleFunc("POST /api/laboratories/{id}/machines/{machineId}/records", h.createRecord)
	m.HandleFunc("PUT /api/laboratories/{id}/machines/{machineId}/records", h.updateRecord)
	m.HandleFunc("DELETE /api/laboratories/{id}/machines/{machineId}/records", h.deleteRecord)

	m.HandleFunc("GET /api/clients", h.listClients)
	m.HandleFunc("GET /api/clients/{id}", h.getClient)
	m.HandleFunc("POST /api/clients", h.createClient)
	m.HandleFunc("PUT /api/clients", h.updateClient)
	m.HandleFunc("DELETE /api/clients", h.deleteClient)

	m.HandleFunc("GET /api/clients/{id}/tests", h.listClientTests)
	m.HandleFunc("POST /api/clients/{id}/tests", h.createClientTest)
	m.HandleFunc("PUT /api/clients/{id}/tests", h.updateClientTest)
	m.HandleFunc("DELETE /api/clients/{id}/tests", h.deleteClientTest)

	m.HandleFunc("GET /api/inventory", h.listInventory)
	m.HandleFunc("POST /api/inventory", h.createInventoryItem)
	m.HandleFunc("PUT /api/inventory", h.updateInventoryItem)
	m.HandleFunc("DELETE /api/inventory", h.deleteInventoryItem)

	m.HandleFunc("GET /api/users", h.listUsers)
	m.HandleFunc("GET /api/users/{id}", h.getUser)
	m.HandleFunc("POST /api/users", h.createUser)
	m.HandleFunc("PUT /api/users", h.updateUser)
	m.HandleFunc("DELETE /api/users", h.deleteUser)

	m.HandleFunc("POST /api/auth", h.login)
	m.HandleFunc("DELETE /api/auth", h.logout)

	m.HandleFunc("GET /api/activities", h.listActivities)
	m.HandleFunc("POST /api/activities", h.recordActivity)
	m.HandleFunc("DELETE /api/activities", h.purgeActivities)

	m.HandleFunc("GET /api/assignments", h.listAssignments)
	m.HandleFunc("POST /api/assignments", h.createAssignment)
	m.HandleFunc("PUT /api/assignments", h.updateAssignment)
	m.HandleFunc("DELETE /api/assignments", h.deleteAssignment)

	if h.chat != nil {
		m.HandleFunc("GET /api/chat", h.getChat)
		m.HandleFunc("POST /api/chat", h.sendMessage)
		m.HandleFunc("PUT /api/chat", h.chatAction)
		m.HandleFunc("DELETE /api/chat", h.deleteChat)
	}

	if h.openapi != nil {
		m.HandleFunc("GET /api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(h.openapi)
		})
	}
	if h.gatherer != nil {
		m.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]string{"status": "ok"}
		if h.version != "" {
			body["version"] = h.version
		}
		writeJSON(w, http.StatusOK, body)
	})
}
