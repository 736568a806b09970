package router

import (
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/timeegg/backend/internal/capsule"
	"github.com/timeegg/backend/internal/handlers"
	"github.com/timeegg/backend/internal/location"
	"github.com/timeegg/backend/internal/logger"
	"github.com/timeegg/backend/internal/middleware"
	"github.com/timeegg/backend/internal/models"
	"github.com/timeegg/backend/internal/notify"
	"github.com/timeegg/backend/internal/repositories"
	"github.com/timeegg/backend/internal/storage"
	appfirebase "github.com/timeegg/backend/pkg/firebase"
)

// SetupMiddleware configures global Echo middleware.
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
}

// SetupRoutes configures all application routes and injects dependencies.
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, fb *appfirebase.App, mapsAPIKey string, log *logger.Logger) error {
	if err := pgdb.AutoMigrate(
		&models.User{},
		&models.Notification{},
	); err != nil {
		return err
	}

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Repositories and collaborators ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	capsuleRepo := repositories.NewMongoCapsuleRepository(mgClient.Database("timeegg"))
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	blobs := storage.NewFirebaseBlobStore(fb.Bucket, fb.BucketName)

	var geocoder location.Geocoder = location.Noop{}
	if mapsAPIKey != "" {
		geocoder = location.NewGoogleGeocoder(mapsAPIKey)
	}

	dispatcher := notify.NewDispatcher(notificationRepo, userRepo, fb.MessagingClient, log)
	capsuleService := capsule.NewService(capsuleRepo, userRepo, blobs, geocoder, dispatcher, log)

	// --- Protected routes (require a Firebase ID token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.FirebaseAuthMiddleware(fb.AuthClient))

	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterAuthRoutes(api.Group("/auth"))
	userHandler.RegisterProfileRoutes(api)

	capsuleHandler := handlers.NewCapsuleHandler(capsuleService)
	capsuleHandler.RegisterCapsuleRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	log.Info().Msg("all routes configured")
	return nil
}
