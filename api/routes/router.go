package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coraldesk/coraldesk-backend/api/controllers"
	"github.com/coraldesk/coraldesk-backend/api/middleware"
	authsvc "github.com/coraldesk/coraldesk-backend/internal/auth"
	"github.com/coraldesk/coraldesk-backend/internal/bulletins"
	"github.com/coraldesk/coraldesk-backend/internal/categories"
	"github.com/coraldesk/coraldesk-backend/internal/clients"
	"github.com/coraldesk/coraldesk-backend/internal/corals"
	"github.com/coraldesk/coraldesk-backend/internal/images"
	"github.com/coraldesk/coraldesk-backend/internal/invoicing"
	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/internal/orders"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth          authsvc.Service
	Clients       clients.Service
	Corals        corals.Service
	Categories    categories.Service
	Orders        orders.Service
	Bulletins     bulletins.Service
	Images        images.Service
	Notifications notifications.Service
	Invoicing     invoicing.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/register", controllers.AuthRegister(svcs.Clients, svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/corals", func(r chi.Router) {
			r.Get("/", controllers.CoralList(svcs.Corals, logg))
			r.Get("/{coralId}", controllers.CoralDetail(svcs.Corals, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.CoralCreate(svcs.Corals, logg))
				r.Patch("/{coralId}", controllers.CoralUpdate(svcs.Corals, logg))
				r.Post("/{coralId}/restock", controllers.CoralRestock(svcs.Corals, logg))
				r.Delete("/{coralId}", controllers.CoralDelete(svcs.Corals, logg))
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(svcs.Categories, logg))
			r.Get("/{categoryId}", controllers.CategoryDetail(svcs.Categories, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.CategoryCreate(svcs.Categories, logg))
				r.Patch("/{categoryId}", controllers.CategoryRename(svcs.Categories, logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(svcs.Categories, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Get("/", controllers.OrderList(svcs.Orders, logg))
				r.Patch("/{orderId}/status", controllers.OrderUpdateStatus(svcs.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
				r.Post("/{orderId}/paid", controllers.OrderMarkPaid(svcs.Orders, logg))
				r.Post("/{orderId}/archive", controllers.OrderArchive(svcs.Orders, logg))
				r.Post("/{orderId}/invoice", controllers.OrderInvoice(svcs.Invoicing, svcs.Orders, logg))
				r.Delete("/{orderId}", controllers.OrderDelete(svcs.Orders, logg))
			})
		})

		r.Route("/bulletins", func(r chi.Router) {
			r.Get("/", controllers.BulletinList(svcs.Bulletins, logg))
			r.Get("/{bulletinId}", controllers.BulletinDetail(svcs.Bulletins, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.BulletinCreate(svcs.Bulletins, logg))
				r.Patch("/{bulletinId}", controllers.BulletinUpdate(svcs.Bulletins, logg))
				r.Post("/{bulletinId}/publish", controllers.BulletinPublish(svcs.Bulletins, logg))
				r.Delete("/{bulletinId}", controllers.BulletinDelete(svcs.Bulletins, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", controllers.ClientList(svcs.Clients, logg))
				r.Get("/{clientId}", controllers.ClientDetail(svcs.Clients, logg))
				r.Patch("/{clientId}", controllers.ClientUpdate(svcs.Clients, logg))
				r.Delete("/{clientId}", controllers.ClientDelete(svcs.Clients, logg))
			})

			r.Post("/images/move", controllers.ImageMove(svcs.Images, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationList(svcs.Notifications, logg))
				r.Post("/{jobId}/retry", controllers.NotificationRetry(svcs.Notifications, logg))
				r.Delete("/{jobId}", controllers.NotificationDelete(svcs.Notifications, logg))
			})

			r.Route("/accounting", func(r chi.Router) {
				r.Get("/connect", controllers.AccountingConnect(svcs.Invoicing, logg))
				r.Get("/callback", controllers.AccountingCallback(svcs.Invoicing, logg))
				r.Get("/status", controllers.AccountingStatus(svcs.Invoicing, logg))
				r.Post("/disconnect", controllers.AccountingDisconnect(svcs.Invoicing, logg))
			})
		})
	})

	return r
}
