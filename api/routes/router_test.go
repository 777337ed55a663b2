package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gatsis/gatsishub-backend/internal/auth"
	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/internal/materials"
	"github.com/gatsis/gatsishub-backend/internal/messages"
	"github.com/gatsis/gatsishub-backend/internal/notifications"
	"github.com/gatsis/gatsishub-backend/internal/orders"
	"github.com/gatsis/gatsishub-backend/internal/quotas"
	pkgAuth "github.com/gatsis/gatsishub-backend/pkg/auth"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
)

type stubSessionManager struct{}

func (stubSessionManager) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(context.Context, string, string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(context.Context, string) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, string, string) (*auth.LoginResult, error) {
	return &auth.LoginResult{RequiresVerification: true}, nil
}

func (stubAuthService) VerifyLoginCode(context.Context, string, string) (*auth.Session, error) {
	return &auth.Session{}, nil
}

func (stubAuthService) Google(context.Context, string) (*auth.Session, error) {
	return &auth.Session{}, nil
}

func (stubAuthService) Signup(context.Context, auth.SignupInput) (*auth.Session, error) {
	return &auth.Session{}, nil
}

func (stubAuthService) Refresh(context.Context, string, string) (*auth.Session, error) {
	return &auth.Session{}, nil
}

func (stubAuthService) Logout(context.Context, string) error {
	return nil
}

func (stubAuthService) ChangePassword(context.Context, uuid.UUID, string, string) error {
	return nil
}

func (stubAuthService) DeleteAccount(context.Context, uuid.UUID, string) error {
	return nil
}

type stubMaterialsService struct{}

func (stubMaterialsService) List(context.Context, *bool) ([]models.Material, error) {
	return nil, nil
}

func (stubMaterialsService) Create(context.Context, materials.CreateInput) (*models.Material, error) {
	return &models.Material{}, nil
}

func (stubMaterialsService) Update(context.Context, uuid.UUID, materials.UpdateInput) (*models.Material, error) {
	return &models.Material{}, nil
}

func (stubMaterialsService) Delete(context.Context, uuid.UUID) error {
	return nil
}

type stubMessagesService struct{}

func (stubMessagesService) Thread(context.Context, uuid.UUID, enums.ActorKind) ([]models.Message, error) {
	return nil, nil
}

func (stubMessagesService) Conversations(context.Context) ([]messages.ConversationSummary, error) {
	return nil, nil
}

func (stubMessagesService) Send(context.Context, messages.SendInput) (*models.Message, error) {
	return &models.Message{}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

type stubAdminNotificationsService struct{}

func (stubAdminNotificationsService) List(context.Context, notifications.AdminListParams) (*notifications.AdminListResult, error) {
	return &notifications.AdminListResult{}, nil
}

func (stubAdminNotificationsService) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubAdminNotificationsService) MarkAllRead(context.Context, uuid.UUID, enums.EmployeeRole) (int64, error) {
	return 0, nil
}

func (stubAdminNotificationsService) Delete(context.Context, uuid.UUID) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) List(context.Context, orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (stubOrdersService) Get(context.Context, orders.Actor, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) Logs(context.Context, orders.Actor, uuid.UUID) ([]models.OrderLog, error) {
	return nil, nil
}

func (stubOrdersService) Create(context.Context, orders.CreateInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ChangeStatus(context.Context, orders.ChangeStatusInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) VerifyPayment(context.Context, orders.Actor, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) TeamOrders(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

type stubQuotasService struct{}

func (stubQuotasService) ListQuotas(context.Context, *enums.QuotaStatus, *uuid.UUID) ([]models.Quota, error) {
	return nil, nil
}

func (stubQuotasService) GetQuota(context.Context, uuid.UUID) (*models.Quota, error) {
	return &models.Quota{}, nil
}

func (stubQuotasService) CreateQuota(context.Context, quotas.CreateQuotaInput) (*models.Quota, error) {
	return &models.Quota{}, nil
}

func (stubQuotasService) CloseQuota(context.Context, quotas.Actor, uuid.UUID) error {
	return nil
}

func (stubQuotasService) Submit(context.Context, quotas.SubmitInput) (*models.Submission, error) {
	return &models.Submission{}, nil
}

func (stubQuotasService) Verify(context.Context, quotas.ReviewInput) (*models.Submission, error) {
	return &models.Submission{}, nil
}

func (stubQuotasService) Reject(context.Context, quotas.ReviewInput) (*models.Submission, error) {
	return &models.Submission{}, nil
}

func (stubQuotasService) ListSubmissions(context.Context, *enums.SubmissionStatus, *uuid.UUID) ([]models.Submission, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func testDeps(cfg *config.Config) Deps {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return Deps{
		Config:             cfg,
		Logger:             logg,
		SessionManager:     stubSessionManager{},
		Auth:               stubAuthService{},
		Materials:          stubMaterialsService{},
		Messages:           stubMessagesService{},
		Notifications:      stubNotificationsService{},
		AdminNotifications: stubAdminNotificationsService{},
		Orders:             stubOrdersService{},
		Quotas:             stubQuotasService{},
		Hub:                changefeed.NewHub(cfg.Changefeed, logg),
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	return NewRouter(testDeps(cfg))
}

func mintToken(t *testing.T, cfg *config.Config, kind enums.ActorKind, role *enums.EmployeeRole, teamID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		ActorID:   uuid.New(),
		ActorKind: kind,
		Role:      role,
		TeamID:    teamID,
		JTI:       session.NewAccessID(),
	})
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("X-GH-Token", token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAuthedGroupRejectsMissingToken(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := doRequest(t, router, http.MethodGet, "/api/v1/materials", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := doRequest(t, router, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestCustomerRoutesRejectStaff(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	role := enums.EmployeeRoleSalesAdmin

	staff := mintToken(t, cfg, enums.ActorKindStaff, &role, nil)
	resp := doRequest(t, router, http.MethodGet, "/api/v1/messages", staff)
	require.Equal(t, http.StatusForbidden, resp.Code, "staff must not read customer threads")

	customer := mintToken(t, cfg, enums.ActorKindCustomer, nil, nil)
	resp = doRequest(t, router, http.MethodGet, "/api/v1/messages", customer)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := mintToken(t, cfg, enums.ActorKindCustomer, nil, nil)
	resp := doRequest(t, router, http.MethodGet, "/api/v1/admin/conversations", customer)
	require.Equal(t, http.StatusForbidden, resp.Code, "customers must not reach admin routes")

	worker := enums.EmployeeRoleProduction
	workerToken := mintToken(t, cfg, enums.ActorKindStaff, &worker, nil)
	resp = doRequest(t, router, http.MethodGet, "/api/v1/admin/conversations", workerToken)
	require.Equal(t, http.StatusForbidden, resp.Code, "production workers must not reach admin routes")

	admin := enums.EmployeeRoleSalesAdmin
	adminToken := mintToken(t, cfg, enums.ActorKindStaff, &admin, nil)
	resp = doRequest(t, router, http.MethodGet, "/api/v1/admin/conversations", adminToken)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestSubmissionReviewRequiresOperationalManager(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	path := "/api/v1/admin/submissions/" + uuid.NewString() + "/verify"

	sales := enums.EmployeeRoleSalesAdmin
	salesToken := mintToken(t, cfg, enums.ActorKindStaff, &sales, nil)
	resp := doRequest(t, router, http.MethodPost, path, salesToken)
	require.Equal(t, http.StatusForbidden, resp.Code, "sales admins must not review submissions")

	manager := enums.EmployeeRoleOperationalManager
	managerToken := mintToken(t, cfg, enums.ActorKindStaff, &manager, nil)
	resp = doRequest(t, router, http.MethodPost, path, managerToken)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestWorkerSubmissionRouteRejectsManagers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	manager := enums.EmployeeRoleOperationalManager
	managerToken := mintToken(t, cfg, enums.ActorKindStaff, &manager, nil)
	resp := doRequest(t, router, http.MethodPost, "/api/v1/production/submissions", managerToken)
	require.Equal(t, http.StatusForbidden, resp.Code, "managers report through review, not submission")
}

func TestMyTeamOrdersRequiresTeam(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	worker := enums.EmployeeRoleAssembly
	noTeam := mintToken(t, cfg, enums.ActorKindStaff, &worker, nil)
	resp := doRequest(t, router, http.MethodGet, "/api/v1/employees/me/orders", noTeam)
	require.Equal(t, http.StatusForbidden, resp.Code, "workers without a team have no team orders")

	teamID := uuid.New()
	withTeam := mintToken(t, cfg, enums.ActorKindStaff, &worker, &teamID)
	resp = doRequest(t, router, http.MethodGet, "/api/v1/employees/me/orders", withTeam)
	require.Equal(t, http.StatusOK, resp.Code)
}

type replayStore struct {
	data map[string]string
}

func (s *replayStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (s *replayStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	s.data[key] = str
	return true, nil
}

func (s *replayStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (s *replayStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestGuardedRoutesRequireIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	store := &replayStore{data: make(map[string]string)}
	deps := testDeps(cfg)
	deps.Idempotency = store
	router := NewRouter(deps)

	customer := mintToken(t, cfg, enums.ActorKindCustomer, nil, nil)
	path := "/api/v1/notifications/" + uuid.NewString() + "/read"

	resp := doRequest(t, router, http.MethodPost, path, customer)
	require.Equal(t, http.StatusBadRequest, resp.Code, "guarded POST without a key must be rejected")
	require.Contains(t, resp.Body.String(), "Idempotency-Key")
	require.Empty(t, store.data)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-GH-Token", customer)
	req.Header.Set("Idempotency-Key", "read-once")
	keyed := httptest.NewRecorder()
	router.ServeHTTP(keyed, req)
	require.Equal(t, http.StatusOK, keyed.Code)
	require.Len(t, store.data, 1, "the keyed request must write a replay record")
}

func TestSendMessageCapsRequestBody(t *testing.T) {
	cfg := testConfig()
	cfg.Messaging.MaxAttachmentMB = 1
	router := newTestRouter(cfg)
	customer := mintToken(t, cfg, enums.ActorKindCustomer, nil, nil)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
		req.Header.Set("X-GH-Token", customer)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	resp := send(`{"body":"hello"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	oversized := `{"body":"` + strings.Repeat("a", 2<<20) + `"}`
	resp = send(oversized)
	require.Equal(t, http.StatusBadRequest, resp.Code, "bodies beyond the cap must be rejected")
	require.Contains(t, resp.Body.String(), "request body too large")
}
