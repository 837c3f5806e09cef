package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/config"
	"github.com/IAmShivay/ANIME-sub001/internal/database"
	"github.com/IAmShivay/ANIME-sub001/internal/events"
	"github.com/IAmShivay/ANIME-sub001/internal/handlers"
	"github.com/IAmShivay/ANIME-sub001/internal/routes"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/store/memstore"
	"github.com/IAmShivay/ANIME-sub001/internal/store/mongostore"
	"github.com/IAmShivay/ANIME-sub001/internal/store/sqlstore"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)
	ctx := context.Background()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}

	holdStore := services.HoldStore(services.NewMemoryHoldStore())
	if cfg.RedisAddr != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer client.Close()
		holdStore = services.NewRedisHoldStore(client)
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.WithError(err).Warn("kafka unavailable, order events disabled")
		} else {
			publisher = kafka
		}
	}

	smtp := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	var orderMailer services.Mailer
	if cfg.SMTPHost != "" {
		orderMailer = smtp
	}
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	notifier := services.NewOrderNotifier(orderMailer, telegram, publisher, log)

	var images services.ImageStore
	if cfg.MinioEndpoint != "" {
		minio, err := services.NewMinioImageStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.WithError(err).Warn("image storage unavailable, uploads disabled")
		} else {
			images = minio
		}
	}

	razorpay := services.NewRazorpayService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL)
	var (
		stripe  *services.StripeService
		gateway *services.GuardedGateway
	)
	switch cfg.PaymentProvider {
	case "stripe":
		stripe = services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		gateway = services.NewGuardedGateway(stripe, log)
	default:
		gateway = services.NewGuardedGateway(razorpay, log)
	}

	settings := services.NewSettingsService(st)
	holds := services.NewReservationService(holdStore, st, cfg.HoldTTL)
	otp := services.NewOTPService(st, smtp, log)

	checkout := services.NewCheckoutService(services.CheckoutDeps{
		Products:        st,
		Orders:          st,
		Settings:        settings,
		Gateway:         gateway,
		Holds:           holds,
		Numbers:         services.NewOrderNumberGenerator(),
		Notifier:        notifier,
		Logger:          log,
		StrictInventory: cfg.StrictInventory,
	})
	orders := services.NewOrderService(services.OrderServiceDeps{
		Orders:   st,
		Products: st,
		Verifier: razorpay,
		Notifier: notifier,
		Logger:   log,
	})

	app := fiber.New(fiber.Config{
		AppName:      "Anime Store Backend",
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		JWTSecret: cfg.JWTSecret,
		Users:     st,
		Auth:      services.NewAuthService(st, otp, cfg.JWTSecret, cfg.TokenExpires, cfg.AdminEmails, log),
		Products:  services.NewProductService(st, images),
		Checkout:  checkout,
		Orders:    orders,
		Holds:     holds,
		Reviews:   services.NewReviewService(st, st, st, st),
		Settings:  settings,
		Stripe:    stripe,
		Gateway:   gateway,
		Logger:    log,
	})

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.AppPort,
			"store":   cfg.StoreDriver,
			"gateway": gateway.Name(),
			"strict":  cfg.StrictInventory,
		}).Info("starting server")
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.WithError(err).Fatal("fiber.Listen error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	notifier.Wait()
	if err := publisher.Close(); err != nil {
		log.WithError(err).Warn("closing event publisher failed")
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("closing store failed")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, client, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		db, err := database.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(db), nil
	}
}
