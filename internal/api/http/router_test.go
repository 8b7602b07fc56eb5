package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/touripk/support-desk/internal/api/http/handlers"
	"github.com/touripk/support-desk/internal/auth"
	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/events"
	"github.com/touripk/support-desk/internal/observability"
	"github.com/touripk/support-desk/internal/repository"
	"github.com/touripk/support-desk/internal/service"
	apperrors "github.com/touripk/support-desk/pkg/util"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app      *fiber.App
	tokens   *auth.TokenManager
	metrics  *observability.Metrics
	mu       sync.Mutex
	now      time.Time
	company  domain.Company
	customer domain.User
	owner    domain.User
	admin    domain.User
}

func (s *testServer) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *testServer) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func newTestServer(t *testing.T, createLimit int) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	srv := &testServer{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}

	hash, err := auth.HashPassword("tour-pass", bcrypt.MinCost)
	require.NoError(t, err)
	srv.customer = store.AddUser(domain.User{Name: "Tess", Email: "tess@mail.test", PasswordHash: hash, UserType: domain.UserTypeTourist, IsActive: true})
	srv.owner = store.AddUser(domain.User{Name: "Omar", Email: "omar@sunny.test", PasswordHash: hash, UserType: domain.UserTypeCompany, IsActive: true})
	srv.admin = store.AddUser(domain.User{Name: "Ada", Email: "ada@desk.test", PasswordHash: hash, IsStaff: true, IsActive: true})
	ownerID := srv.owner.ID
	srv.company = store.AddCompany(domain.Company{OwnerID: &ownerID, Name: "Sunny Tours", Email: "support@sunny.test", ApprovalStatus: domain.ApprovalApproved, IsActive: true})

	srv.tokens = auth.NewTokenManager("test-secret", 60)
	srv.metrics = observability.NewMetrics(prometheus.NewRegistry())
	logger := zap.NewNop()
	repos := store.Repositories()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Repos:      repos,
		Tx:         store,
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    srv.metrics,
		Logger:     logger,
		Clock:      srv.clock,
	})

	srv.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(srv.app, logger, srv.metrics, 5*time.Second)
	RegisterRoutes(srv.app, RouteConfig{
		Health:              handlers.NewHealthHandler("support-desk", "test", stubPinger{}, stubPinger{}),
		Auth:                handlers.NewAuthHandler(service.NewAuthService(repos.Users, srv.tokens)),
		Tickets:             handlers.NewTicketsHandler(ticketService, srv.clock),
		Operator:            handlers.NewOperatorTicketsHandler(ticketService, srv.clock),
		AuthMiddleware:      auth.NewAuthMiddleware(srv.tokens, repos.Users, repos.Companies),
		TicketCreateLimiter: NewTicketCreateLimiter(nil, createLimit, time.Hour),
		Metrics:             srv.metrics,
	})
	return srv
}

func (s *testServer) token(t *testing.T, user domain.User) string {
	t.Helper()
	tok, _, err := s.tokens.GenerateToken(user.ID)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func (s *testServer) createTicket(t *testing.T, token string) string {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/support/tickets", token, map[string]any{
		"company_id":  s.company.ID,
		"subject":     "Missing transfer",
		"description": "The airport shuttle never came.",
		"issue_type":  "delivery",
		"priority":    "high",
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	ref, _ := data(body)["reference"].(string)
	require.True(t, strings.HasPrefix(ref, "TKT-"))
	return ref
}

func TestLoginIssuesToken(t *testing.T) {
	srv := newTestServer(t, 10)

	status, body := srv.do(t, nethttp.MethodPost, "/auth/login", "", map[string]any{"email": "omar@sunny.test", "password": "tour-pass"})
	require.Equal(t, nethttp.StatusOK, status)
	authBody, _ := data(body)["auth"].(map[string]any)
	assert.Equal(t, "company", authBody["role"])
	assert.NotEmpty(t, authBody["token"])

	status, body = srv.do(t, nethttp.MethodPost, "/auth/login", "", map[string]any{"email": "omar@sunny.test", "password": "nope"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, 10)
	customer := srv.token(t, srv.customer)
	owner := srv.token(t, srv.owner)
	admin := srv.token(t, srv.admin)

	ref := srv.createTicket(t, customer)

	status, body := srv.do(t, nethttp.MethodPost, "/support/tickets/"+ref+"/escalate", customer, nil)
	assert.Equal(t, nethttp.StatusConflict, status, "deadline has not passed yet")
	assert.Equal(t, apperrors.CodeEscalationRejected, errorCode(body))

	srv.advance(49 * time.Hour)

	status, body = srv.do(t, nethttp.MethodGet, "/support/company/tickets", owner, nil)
	require.Equal(t, nethttp.StatusOK, status)
	items, _ := body["data"].([]any)
	require.Len(t, items, 1)
	summary := items[0].(map[string]any)
	assert.Equal(t, "escalated", summary["status"], "reading an overdue ticket escalates it")
	assert.Equal(t, true, summary["escalated_to_admin"])

	status, body = srv.do(t, nethttp.MethodGet, "/support/admin/tickets", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, nethttp.MethodPost, "/support/tickets/"+ref+"/messages", owner, map[string]any{"message": "Refund is on the way."})
	assert.Equal(t, nethttp.StatusCreated, status)

	status, body = srv.do(t, nethttp.MethodPost, "/support/tickets/"+ref+"/resolve", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "resolved", data(body)["status"])

	status, body = srv.do(t, nethttp.MethodGet, "/support/tickets/"+ref+"/history", customer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	history, _ := body["data"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "escalation_on_read", history[0].(map[string]any)["trigger"])
	assert.Equal(t, "resolved", history[1].(map[string]any)["new_status"])
}

func TestRoleGuards(t *testing.T) {
	srv := newTestServer(t, 10)
	customer := srv.token(t, srv.customer)
	owner := srv.token(t, srv.owner)

	status, body := srv.do(t, nethttp.MethodGet, "/support/admin/tickets", owner, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(body))

	status, _ = srv.do(t, nethttp.MethodGet, "/support/company/tickets", customer, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = srv.do(t, nethttp.MethodPost, "/support/tickets", owner, map[string]any{"subject": "x"})
	assert.Equal(t, nethttp.StatusForbidden, status, "only customers open tickets")

	status, _ = srv.do(t, nethttp.MethodGet, "/support/tickets", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body = srv.do(t, nethttp.MethodGet, "/support/tickets/TKT-NOPE0000", customer, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}

func TestCreateValidationErrors(t *testing.T) {
	srv := newTestServer(t, 10)
	customer := srv.token(t, srv.customer)

	status, body := srv.do(t, nethttp.MethodPost, "/support/tickets", customer, map[string]any{
		"company_id": srv.company.ID,
		"subject":    "",
		"issue_type": "weather",
		"priority":   "high",
	})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, errorCode(body))
}

func TestTicketCreateRateLimited(t *testing.T) {
	srv := newTestServer(t, 2)
	customer := srv.token(t, srv.customer)

	srv.createTicket(t, customer)
	srv.createTicket(t, customer)

	status, body := srv.do(t, nethttp.MethodPost, "/support/tickets", customer, map[string]any{
		"company_id":  srv.company.ID,
		"subject":     "Third",
		"description": "One too many.",
		"issue_type":  "other",
		"priority":    "low",
	})
	assert.Equal(t, nethttp.StatusTooManyRequests, status)
	assert.Equal(t, apperrors.CodeRateLimited, errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 10)

	status, body := srv.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := newTestServer(t, 10)
	status, body := srv.do(t, nethttp.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}

func TestListRejectsOutOfRangePage(t *testing.T) {
	srv := newTestServer(t, 10)
	customer := srv.token(t, srv.customer)
	srv.createTicket(t, customer)

	status, body := srv.do(t, nethttp.MethodGet, "/support/tickets?page=9223372036854775807&page_size=100", customer, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, errorCode(body))

	status, body = srv.do(t, nethttp.MethodGet, "/support/tickets?page=2", customer, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Empty(t, body["data"], "page two of a single ticket is empty, not page one again")
}
