package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gatsis/gatsishub-backend/api/controllers"
	"github.com/gatsis/gatsishub-backend/api/middleware"
	"github.com/gatsis/gatsishub-backend/internal/auth"
	"github.com/gatsis/gatsishub-backend/internal/changefeed"
	"github.com/gatsis/gatsishub-backend/internal/materials"
	"github.com/gatsis/gatsishub-backend/internal/messages"
	"github.com/gatsis/gatsishub-backend/internal/notifications"
	"github.com/gatsis/gatsishub-backend/internal/orders"
	"github.com/gatsis/gatsishub-backend/internal/quotas"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps carries everything the HTTP surface needs. Readiness holds the
// pingable infrastructure clients keyed by their report name.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	Redis          *redis.Client
	Idempotency    redis.IdempotencyStore
	SessionManager sessionManager
	Readiness      map[string]controllers.Pinger

	Auth               auth.Service
	Materials          materials.Service
	Messages           messages.Service
	Notifications      notifications.Service
	AdminNotifications notifications.AdminService
	Orders             orders.Service
	Quotas             quotas.Service
	Hub                *changefeed.Hub
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)
	verifyPolicy := middleware.NewAuthRateLimitPolicy(
		"verify",
		cfg.AuthRateLimit.VerifyWindow,
		cfg.AuthRateLimit.VerifyIPLimit,
		cfg.AuthRateLimit.VerifyEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	// Idempotency treats a nil store as disabled; never hand it a typed-nil client.
	idempotencyStore := deps.Idempotency
	if idempotencyStore == nil && deps.Redis != nil {
		idempotencyStore = deps.Redis
	}
	idempotency := middleware.Idempotency(idempotencyStore, logg)

	// Message uploads carry base64 attachments; cap the body before buffering,
	// with headroom for the encoding overhead and the JSON envelope.
	attachmentMB := int64(cfg.Messaging.MaxAttachmentMB)
	if attachmentMB <= 0 {
		attachmentMB = 10
	}
	messageBodyCap := chimiddleware.RequestSize(attachmentMB << 20 * 3 / 2)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(verifyPolicy, deps.Redis, logg)).Post("/verify-login-code", controllers.AuthVerifyLoginCode(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(signupPolicy, deps.Redis, logg), idempotency).Post("/signup", controllers.AuthSignup(deps.Auth, logg))
		r.Post("/google", controllers.AuthGoogle(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(idempotency)

		r.Post("/auth/logout", controllers.AuthLogout(deps.Auth, logg))
		r.Get("/materials", controllers.ListMaterials(deps.Materials, logg))
		r.Get("/stream", controllers.Stream(deps.Hub, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderID}", controllers.OrderDetail(deps.Orders, logg))
			r.Get("/{orderID}/logs", controllers.OrderLogs(deps.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCustomer(logg))

			r.Post("/auth/change-password", controllers.AuthChangePassword(deps.Auth, logg))
			r.Post("/auth/delete-account", controllers.AuthDeleteAccount(deps.Auth, logg))
			r.Post("/orders", controllers.CreateOrder(deps.Orders, logg))

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", controllers.MessageThread(deps.Messages, logg))
				r.With(messageBodyCap).Post("/", controllers.SendMessage(deps.Messages, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Delete("/{notificationID}", controllers.DeleteNotification(deps.Notifications, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Get("/employees/me/orders", controllers.MyTeamOrders(deps.Orders, logg))

			r.Route("/admin-notifications", func(r chi.Router) {
				r.Get("/", controllers.ListAdminNotifications(deps.AdminNotifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkAdminNotificationRead(deps.AdminNotifications, logg))
				r.Post("/read-all", controllers.MarkAllAdminNotificationsRead(deps.AdminNotifications, logg))
				r.Delete("/{notificationID}", controllers.DeleteAdminNotification(deps.AdminNotifications, logg))
			})

			r.With(middleware.RequireStaffRole(logg, enums.EmployeeRoleProduction, enums.EmployeeRoleAssembly)).
				Post("/production/submissions", controllers.CreateSubmission(deps.Quotas, logg))

			r.With(middleware.RequireStaffRole(logg, enums.EmployeeRoleSalesAdmin, enums.EmployeeRoleOperationalManager)).
				Get("/teams/{teamID}/orders", controllers.TeamOrders(deps.Orders, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaffRole(logg, enums.EmployeeRoleSalesAdmin, enums.EmployeeRoleOperationalManager))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", controllers.AdminConversations(deps.Messages, logg))
				r.Get("/{customerID}/messages", controllers.AdminConversationThread(deps.Messages, logg))
				r.With(messageBodyCap).Post("/{customerID}/messages", controllers.AdminSendMessage(deps.Messages, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaffRole(logg, enums.EmployeeRoleSalesAdmin))

				r.Route("/materials", func(r chi.Router) {
					r.Post("/", controllers.CreateMaterial(deps.Materials, logg))
					r.Patch("/{materialID}", controllers.UpdateMaterial(deps.Materials, logg))
					r.Delete("/{materialID}", controllers.DeleteMaterial(deps.Materials, logg))
				})

				r.Post("/orders", controllers.AdminCreateOrder(deps.Orders, logg))
				r.Post("/orders/{orderID}/payment", controllers.VerifyOrderPayment(deps.Orders, logg))
			})

			r.Post("/orders/{orderID}/status", controllers.ChangeOrderStatus(deps.Orders, logg))

			r.Route("/quotas", func(r chi.Router) {
				r.Get("/", controllers.ListQuotas(deps.Quotas, logg))
				r.Get("/{quotaID}", controllers.QuotaDetail(deps.Quotas, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaffRole(logg, enums.EmployeeRoleOperationalManager))
					r.Post("/", controllers.CreateQuota(deps.Quotas, logg))
					r.Post("/{quotaID}/close", controllers.CloseQuota(deps.Quotas, logg))
				})
			})

			r.Route("/submissions", func(r chi.Router) {
				r.Use(middleware.RequireStaffRole(logg, enums.EmployeeRoleOperationalManager))
				r.Get("/", controllers.ListSubmissions(deps.Quotas, logg))
				r.Post("/{submissionID}/verify", controllers.VerifySubmission(deps.Quotas, logg))
				r.Post("/{submissionID}/reject", controllers.RejectSubmission(deps.Quotas, logg))
			})
		})
	})

	return r
}
