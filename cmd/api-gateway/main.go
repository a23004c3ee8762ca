package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jlebunetel/toolbox-api/api/swagger"
	"github.com/jlebunetel/toolbox-api/internal/handler"
	"github.com/jlebunetel/toolbox-api/internal/i18n"
	"github.com/jlebunetel/toolbox-api/internal/mailer"
	"github.com/jlebunetel/toolbox-api/internal/middleware"
	"github.com/jlebunetel/toolbox-api/internal/models"
	"github.com/jlebunetel/toolbox-api/internal/repository"
	"github.com/jlebunetel/toolbox-api/internal/scheduler"
	"github.com/jlebunetel/toolbox-api/internal/service"
	"github.com/jlebunetel/toolbox-api/pkg/cache"
	"github.com/jlebunetel/toolbox-api/pkg/config"
	"github.com/jlebunetel/toolbox-api/pkg/database"
	"github.com/jlebunetel/toolbox-api/pkg/feeds"
	"github.com/jlebunetel/toolbox-api/pkg/jobs"
	"github.com/jlebunetel/toolbox-api/pkg/logger"
	corsmiddleware "github.com/jlebunetel/toolbox-api/pkg/middleware/cors"
	reqidmiddleware "github.com/jlebunetel/toolbox-api/pkg/middleware/requestid"
)

const version = "1.0.0"

// @title Toolbox API
// @version 1.0.0
// @description Family toolbox: people, families and anniversary calendar feeds
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, feed caching disabled", "error", err)
		redisClient = nil
	}

	bundle, err := i18n.NewBundle()
	if err != nil {
		logr.Sugar().Fatalw("failed to load locales", "error", err)
	}
	localizer := i18n.NewLocalizer(bundle, cfg.Site.Language)

	var metricsService *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsService = service.NewMetricsService()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	personRepo := repository.NewPersonRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Feeds.CacheTTL, logr, redisClient != nil)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.Site.Name,
		Audience:           []string{cfg.Site.Name},
	})
	userService := service.NewUserService(userRepo, validate, logr)
	personService := service.NewPersonService(personRepo, familyRepo, userRepo, cacheService, validate, logr)
	familyService := service.NewFamilyService(familyRepo, userRepo, cacheService, validate, logr)

	signer := feeds.NewSigner(cfg.Feeds.SignedURLSecret, cfg.Feeds.SignedURLTTL)
	calendarService := service.NewCalendarService(calendarRepo, personRepo, familyRepo, userRepo, cacheService, metricsService, localizer, signer, service.CalendarConfig{
		SiteName: cfg.Site.Name,
		BaseURL:  siteBaseURL(cfg.Site.Domain),
		Language: cfg.Site.Language,
		Timezone: cfg.Site.Timezone,
		Version:  version,
		FeedTTL:  cfg.Feeds.CacheTTL,
	}, validate, logr)

	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	reminderService := service.NewReminderService(userRepo, calendarRepo, calendarService, sender, metricsService, localizer, service.ReminderConfig{
		SiteName:  cfg.Site.Name,
		DaysAhead: cfg.Reminders.DaysAhead,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	digestQueue := jobs.NewQueue("reminders", func(ctx context.Context, job jobs.Job) error {
		if job.Type != scheduler.JobTypeReminderDigest {
			logr.Sugar().Warnw("unknown job type", "type", job.Type)
			return nil
		}
		return reminderService.SendDigest(ctx)
	}, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Reminders.JobRetries,
		RetryDelay: time.Minute,
		Logger:     logr,
	})

	cronScheduler := scheduler.New(logr)
	if cfg.Reminders.Enabled {
		digestQueue.Start(ctx)
		defer digestQueue.Stop()

		if err := cronScheduler.RegisterDigest(cfg.Reminders.CronSpec, digestQueue); err != nil {
			logr.Sugar().Fatalw("failed to schedule reminders", "error", err)
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	personHandler := handler.NewPersonHandler(personService)
	familyHandler := handler.NewFamilyHandler(familyService)
	calendarHandler := handler.NewCalendarHandler(calendarService, cfg.Exports.Enabled)
	feedHandler := handler.NewFeedHandler(calendarService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Feed downloads are public: calendar clients cannot present a JWT.
	api.GET("/calendars/:id/:filename", feedHandler.Direct)
	api.GET("/feeds/:filename", feedHandler.Signed)

	authed := api.Group("", middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		authed.GET("/users/me", userHandler.Me)
		adminRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
		authed.GET("/users", adminRoles, userHandler.List)
		authed.POST("/users", adminRoles, userHandler.Create)
		authed.GET("/users/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "SELF"), userHandler.Get)
		authed.PUT("/users/:id", middleware.RBAC("SUPERADMIN", "ADMIN", "SELF"), userHandler.Update)
		authed.DELETE("/users/:id", middleware.RequireRoles(models.RoleSuperAdmin), userHandler.Delete)

		authed.GET("/people", personHandler.List)
		authed.POST("/people", personHandler.Create)
		authed.GET("/people/:id", personHandler.Get)
		authed.PUT("/people/:id", personHandler.Update)
		authed.DELETE("/people/:id", personHandler.Delete)

		authed.GET("/families", familyHandler.List)
		authed.POST("/families", familyHandler.Create)
		authed.GET("/families/:id", familyHandler.Get)
		authed.PUT("/families/:id", familyHandler.Update)
		authed.DELETE("/families/:id", familyHandler.Delete)

		authed.GET("/calendars", calendarHandler.List)
		authed.POST("/calendars", calendarHandler.Create)
		authed.GET("/calendars/:id", calendarHandler.Get)
		authed.PUT("/calendars/:id", calendarHandler.Update)
		authed.DELETE("/calendars/:id", calendarHandler.Delete)
		authed.GET("/calendars/:id/upcoming", calendarHandler.Upcoming)
		authed.GET("/calendars/:id/export", calendarHandler.Export)
		authed.GET("/calendars/:id/feed-url", calendarHandler.FeedURL)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func siteBaseURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "http://" + domain
}
