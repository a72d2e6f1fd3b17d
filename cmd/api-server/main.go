package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pianova/piano-adm-api/api/swagger"
	"github.com/pianova/piano-adm-api/internal/handler"
	"github.com/pianova/piano-adm-api/internal/middleware"
	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/repository"
	"github.com/pianova/piano-adm-api/internal/service"
	"github.com/pianova/piano-adm-api/pkg/cache"
	"github.com/pianova/piano-adm-api/pkg/config"
	"github.com/pianova/piano-adm-api/pkg/database"
	"github.com/pianova/piano-adm-api/pkg/logger"
	corsmiddleware "github.com/pianova/piano-adm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pianova/piano-adm-api/pkg/middleware/requestid"
)

// @title Piano ADM API
// @version 1.0.0
// @description Class and slot scheduling service for a piano school
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	dayOffRepo := repository.NewDayOffRepository(db)
	classRepo := repository.NewClassRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	notifier := service.NewNotifier(service.NewRedisPublisher(redisClient), cfg.Notifications, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	authSvc := service.NewAuthService(userRepo, nil, logr, cfg.JWT)
	roomSvc := service.NewRoomService(roomRepo, nil, logr)
	dayOffSvc := service.NewDayOffService(dayOffRepo, nil, logr)
	classSvc := service.NewClassService(classRepo, enrollmentRepo, userRepo, nil, logr)
	slotSvc := service.NewSlotService(db, slotRepo, classRepo, roomSvc, enrollmentRepo, attendanceRepo, dayOffSvc, notifier, nil, logr)
	schedulerSvc := service.NewSchedulerService(db, classRepo, slotRepo, roomSvc, attendanceRepo, enrollmentRepo, dayOffSvc, notifier, metricsSvc, cfg.Scheduler, nil, logr)
	attendanceSvc := service.NewAttendanceService(db, attendanceRepo, slotRepo, cfg.Attendance, nil, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	dayOffHandler := handler.NewDayOffHandler(dayOffSvc)
	classHandler := handler.NewClassHandler(classSvc, schedulerSvc)
	slotHandler := handler.NewSlotHandler(slotSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	calendarHandler := handler.NewCalendarHandler(slotSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
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
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	authed := api.Group("", middleware.JWT(authSvc))
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authed.GET("/rooms", roomHandler.List)
	authed.GET("/rooms/:id", roomHandler.Get)
	authed.POST("/rooms", staff, roomHandler.Create)
	authed.PUT("/rooms/:id", staff, roomHandler.Update)

	authed.GET("/day-offs", staff, dayOffHandler.List)
	authed.POST("/day-offs", admin, dayOffHandler.Create)
	authed.PUT("/day-offs/:id", admin, dayOffHandler.Update)
	authed.DELETE("/day-offs/:id", admin, dayOffHandler.Delete)

	authed.GET("/classes", classHandler.List)
	authed.GET("/classes/:id", classHandler.Get)
	authed.POST("/classes", staff, classHandler.Create)
	authed.PUT("/classes/:id", staff, classHandler.Update)
	authed.PUT("/classes/:id/instructor", staff, classHandler.AssignInstructor)
	authed.GET("/classes/:id/enrollments", staff, classHandler.Roster)
	authed.POST("/classes/:id/enrollments", staff, classHandler.Enroll)
	authed.DELETE("/classes/:id/enrollments/:studentId", staff, classHandler.Unenroll)
	authed.POST("/classes/:id/actions", staff, classHandler.Actions)

	authed.GET("/slots", slotHandler.List)
	authed.GET("/slots/export", staff, slotHandler.Export)
	authed.GET("/slots/:id", slotHandler.Get)
	authed.POST("/slots/actions", staff, slotHandler.Actions)

	authed.GET("/slots/:id/attendance", attendanceHandler.List)
	authed.GET("/slots/:id/attendance/summary", attendanceHandler.Summary)
	authed.POST("/slots/:id/attendance", attendanceHandler.Mark)

	authed.GET("/calendar/week", calendarHandler.Week)
	authed.GET("/calendar/shifts", calendarHandler.Shifts)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
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
