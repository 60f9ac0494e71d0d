package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletd/walletd/internal/apikey"
	"github.com/walletd/walletd/internal/auth"
	"github.com/walletd/walletd/internal/config"
	"github.com/walletd/walletd/internal/funding"
	"github.com/walletd/walletd/internal/ledger"
	"github.com/walletd/walletd/internal/middleware"
	"github.com/walletd/walletd/internal/notification"
	"github.com/walletd/walletd/internal/payments"
	"github.com/walletd/walletd/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Events receives committed ledger events when set.
	Events notification.MessageWriter
	// Gateway overrides the Paystack client, mostly for tests.
	Gateway funding.Gateway
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		store   ledger.Store
		keyRepo apikey.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		keyRepo = apikey.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		keyRepo = apikey.NewMemoryRepository()
	}

	notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Events != nil {
		notifiers = append(notifiers, notification.NewKafkaNotifier(d.Events))
	}

	gateway := d.Gateway
	if gateway == nil {
		gateway = funding.NewPaystackGateway(d.Cfg.PaystackBaseURL, d.Cfg.PaystackSecret, d.Cfg.PaystackTimeout)
	}

	tokens, err := auth.NewService(d.Cfg.JWTSecret)
	if err != nil {
		return err
	}
	keySvc := apikey.NewService(keyRepo)
	walletSvc := wallet.NewService(store, ledger.NewNumberAllocator(), d.Cfg.DefaultCurrency, d.Logger)
	paymentSvc := payments.NewService(store, d.Cfg.DefaultCurrency, notifiers, d.Logger)
	fundingSvc, err := funding.NewService(store, walletSvc, gateway, notifiers, d.Logger, funding.Options{
		FallbackEmail: d.Cfg.DepositFallbackEmail,
	})
	if err != nil {
		return err
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	guard := Guard{
		Authenticate: middleware.Authenticate(tokens, keySvc),
		Idempotency:  middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	}
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), guard)
	RegisterFundingRoutes(api, funding.NewHandler(fundingSvc, d.Cfg.PaystackSecret, d.Logger), guard)
	RegisterPaymentRoutes(api, payments.NewHandler(paymentSvc), guard,
		middleware.RateLimit(d.Cache, "transfer", d.Cfg.TransferRateLimit, d.Logger))
	RegisterKeyRoutes(api, apikey.NewHandler(keySvc), middleware.Authenticate(tokens, nil))

	return nil
}

// Guard bundles the interceptors shared by caller-facing wallet routes.
type Guard struct {
	Authenticate fiber.Handler
	Idempotency  fiber.Handler
}

// Allow authenticates the caller and checks perm.
func (g Guard) Allow(perm apikey.Permission) []fiber.Handler {
	return []fiber.Handler{g.Authenticate, middleware.Require(perm)}
}
