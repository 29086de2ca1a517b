package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/pocketbase/pocketbase/tools/mailer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"expo-booking/config"
	"expo-booking/internal/handlers"
	"expo-booking/internal/services"
	"expo-booking/internal/services/gateway"
	"expo-booking/internal/services/notify"
	"expo-booking/internal/store"
	_ "expo-booking/migrations"
	"expo-booking/monitoring"
	"expo-booking/security"
	"expo-booking/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cmd.Start: config: %w", err)
	}

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("cmd.Start: %w", err)
	}
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pnConfig.UUID = cfg.PubNubUserID
	pn := pubnub.NewPubNub(pnConfig)

	gw, err := gateway.New(gateway.Config{
		BaseURL:         cfg.GatewayBaseURL,
		KeyID:           cfg.GatewayKeyID,
		KeySecret:       cfg.GatewayKeySecret,
		RefundKeyID:     cfg.GatewayRefundKeyID,
		RefundKeySecret: cfg.GatewayRefundKeySecret,
		Timeout:         cfg.GatewayTimeout,
	})
	if err != nil {
		return fmt.Errorf("cmd.Start: %w", err)
	}

	queue := notify.NewQueue(redisClient, cfg.NotifyQueueKey, cfg.NotifyDeadKey)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		ledger := store.NewFromApp(e.App)

		// Initialize services
		orderService := services.NewOrderService(ledger, gw, cfg.GatewayCurrency, cfg.StallHoldTTL)
		paymentService := services.NewPaymentService(ledger, gw, queue)
		cancelService := services.NewCancelService(ledger, gw)
		bookingService := services.NewBookingService(ledger)

		// Initialize handlers
		orderHandler := handlers.NewOrderHandler(orderService)
		stallHandler := handlers.NewStallHandler(orderService)
		paymentHandler := handlers.NewPaymentHandler(paymentService)
		bookingHandler := handlers.NewBookingHandler(bookingService, cancelService)
		queueHandler := handlers.NewQueueHandler(queue)

		// Background workers
		dispatcher := notify.NewDispatcher(appMailer{app: e.App}, notify.NewPubNubPublisher(pn), senderAddress(e.App, cfg))
		go notify.NewWorker(queue, dispatcher, cfg.NotifyMaxAttempts, cfg.NotifyWorkers).Run(ctx)
		if cfg.EnableMetrics {
			go monitoring.NewMonitor(redisClient, map[string]string{
				"pending": queue.PendingKey(),
				"dead":    queue.DeadKey(),
			}).Run(ctx)
		}

		// Order endpoints
		e.Router.POST("/api/v1/orders/booking", orderHandler.CreateBookingOrder).BindFunc(rateLimiter.OrderRateLimit)
		e.Router.POST("/api/v1/orders/exhibitor", orderHandler.CreateExhibitorOrder).BindFunc(rateLimiter.OrderRateLimit)
		e.Router.GET("/api/v1/stalls", stallHandler.ListStalls)

		// Payment endpoints
		e.Router.POST("/api/v1/payments/verify", paymentHandler.VerifyPayment)

		// Booking endpoints
		e.Router.GET("/api/v1/bookings/{id}", bookingHandler.GetBooking)

		// Admin endpoints
		admin := e.Router.Group("/api/v1/admin")
		admin.BindFunc(handlers.RequireAdmin)
		admin.GET("/bookings", bookingHandler.ListBookings)
		admin.POST("/bookings/{id}/cancel", bookingHandler.CancelBooking)
		admin.GET("/notifications", queueHandler.GetNotificationStats)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				slog.Error("utils.RedisHealthCheck()", "error", err)
				return e.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		slog.Info("server routes registered", "environment", cfg.Environment)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	return app.Start()
}

// appMailer resolves the mail client per message so SMTP settings changed
// in the dashboard apply without a restart.
type appMailer struct {
	app core.App
}

func (m appMailer) Send(msg *mailer.Message) error {
	return m.app.NewMailClient().Send(msg)
}

func senderAddress(app core.App, cfg *config.Config) mail.Address {
	from := mail.Address{
		Name:    app.Settings().Meta.SenderName,
		Address: app.Settings().Meta.SenderAddress,
	}
	if cfg.MailFromAddress != "" {
		from.Address = cfg.MailFromAddress
	}
	if cfg.MailFromName != "" {
		from.Name = cfg.MailFromName
	}
	return from
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, stopping workers")
	cancel()
}
