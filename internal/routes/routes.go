package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/handlers"
	"github.com/IAmShivay/ANIME-sub001/internal/middleware"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

// Deps carries the services the HTTP layer is built from.
type Deps struct {
	JWTSecret string
	Users     store.UserStore
	Auth      *services.AuthService
	Products  *services.ProductService
	Checkout  *services.CheckoutService
	Orders    *services.OrderService
	Holds     *services.ReservationService
	Reviews   *services.ReviewService
	Settings  *services.SettingsService
	Stripe    *services.StripeService
	Gateway   *services.GuardedGateway
	Logger    *logrus.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth)
	productHandler := handlers.NewProductHandler(d.Products)
	orderHandler := handlers.NewOrderHandler(d.Checkout, d.Orders, d.Users)
	paymentHandler := handlers.NewPaymentHandler(d.Orders, d.Stripe, d.Logger)
	holdHandler := handlers.NewHoldHandler(d.Holds)
	reviewHandler := handlers.NewReviewHandler(d.Reviews)
	settingsHandler := handlers.NewSettingsHandler(d.Settings)
	adminHandler := handlers.NewAdminHandler(d.Orders)
	healthHandler := handlers.NewHealthHandler(d.Gateway)

	api := app.Group("/api")
	api.Get("/health", healthHandler.Check)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify", authHandler.Verify)
	auth.Post("/login", authHandler.Login)
	auth.Post("/otp", authHandler.RequestOTP)
	auth.Post("/reset-password", authHandler.ResetPassword)

	// Catalog
	api.Get("/products", productHandler.ListProducts)
	api.Get("/products/:id", productHandler.GetProduct)
	api.Get("/products/:id/reviews", reviewHandler.ListForProduct)
	api.Get("/settings", settingsHandler.GetSettings)

	api.Post("/payments/stripe/webhook", paymentHandler.StripeWebhook)

	requireAuth := middleware.AuthMiddleware(d.JWTSecret)

	// Admin routes
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/recent", adminHandler.RecentOrders)
	admin.Get("/orders/:id", adminHandler.GetOrder)
	admin.Patch("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Put("/settings", settingsHandler.UpdateSettings)
	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Post("/products/:id/images", productHandler.UploadImage)
	admin.Get("/reviews", reviewHandler.ListPending)
	admin.Patch("/reviews/:id/approve", reviewHandler.Approve)

	// Protected routes
	protected := api.Group("", requireAuth)

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	protected.Post("/payments/verify", paymentHandler.Verify)

	protected.Post("/holds", holdHandler.Create)
	protected.Delete("/holds/:session", holdHandler.Release)

	protected.Post("/products/:id/reviews", reviewHandler.Create)
}
