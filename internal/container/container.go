package container

import (
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/joshua-takyi/staylink/internal/config"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/lock"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/payment"
	"github.com/joshua-takyi/staylink/internal/services"
	"github.com/joshua-takyi/staylink/internal/store"
	"github.com/joshua-takyi/staylink/internal/ws"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config
	// Database clients
	SupabaseClient *supabase.Client
	MongoDBClient  *mongo.Client
	RedisClient    *redis.Client

	Mongo     *models.MongodbRepo
	Sessions  *store.Registry
	Hub       *ws.Hub
	Validator *helpers.TokenValidator
	Publisher events.Publisher

	UserService         *services.UserService
	AvailabilityService *services.AvailabilityService
	BookingService      *services.BookingService
	PaymentService      *services.PaymentService
	RefundService       *services.RefundService
	PayoutService       *services.PayoutService
	AdminService        *services.AdminService
}

// NewContainer creates a new dependency injection container. mongoDBClient and
// redisClient may be nil; their concerns then run in process.
func NewContainer(
	logger *slog.Logger,
	cfg *config.Config,
	supabaseClient *supabase.Client,
	mongoDBClient *mongo.Client,
	redisClient *redis.Client,
) *Container {
	// Initialize repositories
	supa := models.SupabaseNewRepo(supabaseClient, cfg.SupabaseURL, cfg.SupabaseAnonKey)

	var (
		mongoRepo *models.MongodbRepo
		ledger    models.CallbackLedger = models.NewMemoryCallbackLedger()
		disputes  models.DisputeRepo    = models.NewMemoryDisputeRepo()
	)
	if mongoDBClient != nil {
		mongoRepo = models.MongodbNewRepo(mongoDBClient, cfg.MongoDBName)
		ledger = mongoRepo
		disputes = mongoRepo
	} else {
		logger.Warn("MongoDB not configured, callback ledger and disputes are kept in memory")
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, "")
	}

	var publisher events.Publisher = events.NewNoopPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		if err != nil {
			logger.Error("Kafka publisher unavailable, events will only be logged", "error", err)
		} else {
			publisher = kp
		}
	}

	sessions := store.NewRegistry(cfg.CacheTTL)
	hub := ws.NewHub(logger)
	hub.Follow(sessions)
	widget := payment.NewFedaPayWidget(hub, logger)
	intents := payment.NewIntentClient(cfg.PaymentIntentURL, cfg.IntentTimeout)

	userService := services.NewUserService(supa, logger)
	availabilityService := services.NewAvailabilityService(supa, supa, sessions, logger)
	bookingService := services.NewBookingService(supa, supa, availabilityService, sessions, publisher, logger)
	paymentService := services.NewPaymentService(
		supa, supa, bookingService, intents, widget, ledger, locker, sessions, publisher, logger,
		services.PaymentConfig{
			PublicKey:       cfg.FedaPayPublicKey,
			CheckoutTimeout: cfg.CheckoutTimeout,
		},
	)
	refundService := services.NewRefundService(supa, supa, supa, sessions, publisher, logger)
	payoutService := services.NewPayoutService(supa, sessions, publisher, logger)
	adminService := services.NewAdminService(supa, supa, disputes, publisher, logger)

	return &Container{
		Logger:              logger,
		Config:              cfg,
		SupabaseClient:      supabaseClient,
		MongoDBClient:       mongoDBClient,
		RedisClient:         redisClient,
		Mongo:               mongoRepo,
		Sessions:            sessions,
		Hub:                 hub,
		Validator:           helpers.NewTokenValidator(cfg.SupabaseURL, cfg.AllowUnverifiedTokens),
		Publisher:           publisher,
		UserService:         userService,
		AvailabilityService: availabilityService,
		BookingService:      bookingService,
		PaymentService:      paymentService,
		RefundService:       refundService,
		PayoutService:       payoutService,
		AdminService:        adminService,
	}
}
