package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/univ-erp-api/api/swagger"
	"github.com/noah-isme/univ-erp-api/internal/handler"
	"github.com/noah-isme/univ-erp-api/internal/middleware"
	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/repository"
	"github.com/noah-isme/univ-erp-api/internal/service"
	"github.com/noah-isme/univ-erp-api/pkg/cache"
	"github.com/noah-isme/univ-erp-api/pkg/config"
	"github.com/noah-isme/univ-erp-api/pkg/database"
	"github.com/noah-isme/univ-erp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/univ-erp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/univ-erp-api/pkg/middleware/requestid"
)

// @title University ERP API
// @version 1.0.0
// @description Records platform: authentication, enrollment, grading and provisioning
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

	// The credential and academic stores are independent databases; no
	// transaction ever spans both.
	authDB, err := database.NewPostgres(cfg.AuthDatabase)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect auth store", "error", err)
	}
	defer authDB.Close()

	academicDB, err := database.NewPostgres(cfg.AcademicDatabase)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect academic store", "error", err)
	}
	defer academicDB.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories.
	credentialRepo := repository.NewCredentialRepository(authDB)
	profileRepo := repository.NewProfileRepository(academicDB)
	courseRepo := repository.NewCourseRepository(academicDB)
	sectionRepo := repository.NewSectionRepository(academicDB)
	enrollmentRepo := repository.NewEnrollmentRepository(academicDB)
	gradeRepo := repository.NewGradeRepository(academicDB)
	settingsRepo := repository.NewSettingsRepository(academicDB)

	// Services.
	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()
	settingsSvc := service.NewSettingsService(settingsRepo, redisClient, cfg.Settings.CacheTTL, logr, metricsSvc)
	authSvc := service.NewAuthService(credentialRepo, validate, logr, service.AuthServiceConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	})
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, settingsSvc, cfg.Enrollment.DropWindow, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, sectionRepo, settingsSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, settingsSvc, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, settingsSvc, validate, logr)
	provisioningSvc := service.NewProvisioningService(credentialRepo, profileRepo, validate, logr, cfg.Auth.BcryptCost)
	userSvc := service.NewUserService(credentialRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, enrollmentSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	userHandler := handler.NewUserHandler(userSvc, provisioningSvc, authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := authDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "auth store unavailable"})
			return
		}
		if err := academicDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "academic store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:id", courseHandler.Get)
	authed.GET("/sections", sectionHandler.List)
	authed.GET("/sections/:id", sectionHandler.Get)

	authed.GET("/me/enrollments", enrollmentHandler.ListMine)
	authed.GET("/me/cgpa", gradeHandler.MyCGPA)
	authed.GET("/me/sections", middleware.RequireRoles(models.RoleInstructor), sectionHandler.MySections)

	authed.POST("/enrollments", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), enrollmentHandler.Register)
	authed.POST("/enrollments/:id/drop", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), enrollmentHandler.Drop)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)

	authed.GET("/enrollments/:id/grades", gradeHandler.Summary)
	authed.POST("/enrollments/:id/grades", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), gradeHandler.Create)
	authed.PUT("/grades/:id", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), gradeHandler.Update)
	authed.DELETE("/grades/:id", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), gradeHandler.Delete)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	staff.GET("/sections/:id/roster", enrollmentHandler.Roster)
	staff.GET("/sections/:id/statistics", gradeHandler.SectionStatistics)
	staff.GET("/students/:id/enrollments", enrollmentHandler.ListByStudent)
	staff.GET("/students/:id/cgpa", gradeHandler.StudentCGPA)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/courses", courseHandler.Create)
	admin.PUT("/courses/:id", courseHandler.Update)
	admin.POST("/sections", sectionHandler.Create)
	admin.PUT("/sections/:id", sectionHandler.Update)
	admin.DELETE("/sections/:id", sectionHandler.Delete)
	admin.POST("/users", userHandler.Create)
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:id", userHandler.Get)
	admin.PUT("/users/:id/status", userHandler.UpdateStatus)
	admin.POST("/users/:id/unlock", userHandler.Unlock)
	admin.POST("/users/:id/reset-password", userHandler.ResetPassword)
	admin.GET("/settings", settingsHandler.Get)
	admin.PUT("/settings/maintenance-mode", settingsHandler.SetMaintenanceMode)
	admin.PUT("/settings/add-drop", settingsHandler.SetAddDropEnabled)
	admin.GET("/system/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
