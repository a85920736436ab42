package main

import (
	"log"

	"github.com/FelipeVergaraChico/ping-presenca/internal/config"
	"github.com/FelipeVergaraChico/ping-presenca/internal/database"
	"github.com/FelipeVergaraChico/ping-presenca/internal/handlers"
	"github.com/FelipeVergaraChico/ping-presenca/internal/middleware"
	"github.com/FelipeVergaraChico/ping-presenca/internal/models"
	"github.com/FelipeVergaraChico/ping-presenca/internal/services"
	"github.com/FelipeVergaraChico/ping-presenca/internal/ws"

	_ "github.com/FelipeVergaraChico/ping-presenca/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Ping Presença API
// @version         1.0
// @description     Attendance tracking with short-lived verification codes
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	hub := ws.NewHub()

	authService := services.NewAuthService(db, cfg.JWTSecret)
	courseService := services.NewCourseService(db)
	attendanceService := services.NewAttendanceService(db, hub, courseService, cfg.CodeWindow, cfg.BaseURL)
	defer attendanceService.Close()

	attendanceService.Restore()

	authHandler := handlers.NewAuthHandler(authService)
	courseHandler := handlers.NewCourseHandler(courseService)
	sessionHandler := handlers.NewSessionHandler(attendanceService)
	checkInHandler := handlers.NewCheckInHandler(attendanceService)
	wsHandler := handlers.NewWSHandler(hub)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/session/:public_id", wsHandler.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		courses := api.Group("/courses")
		courses.Use(middleware.JWTAuth(authService))
		{
			courses.GET("", courseHandler.ListCourses)
			courses.POST("/join", middleware.RequireRole(models.RoleStudent), courseHandler.JoinCourse)

			professor := courses.Group("")
			professor.Use(middleware.RequireRole(models.RoleProfessor))
			{
				professor.POST("", courseHandler.CreateCourse)
				professor.GET("/:id/students", courseHandler.ListStudents)
				professor.POST("/:id/sessions", sessionHandler.CreateSession)
			}
		}

		api.GET("/public/sessions/:public_id", sessionHandler.GetPublicStatus)

		sessions := api.Group("/sessions")
		{
			professor := sessions.Group("")
			professor.Use(middleware.JWTAuth(authService), middleware.RequireRole(models.RoleProfessor))
			{
				professor.GET("", sessionHandler.ListSessions)
				professor.GET("/:id", sessionHandler.GetStatus)
				professor.POST("/:id/code", sessionHandler.IssueCode)
				professor.POST("/:id/rotate", sessionHandler.RotateCode)
				professor.POST("/:id/stop", sessionHandler.StopSession)
				professor.PUT("/:id/auto-rotate", sessionHandler.SetAutoRotate)
				professor.GET("/:id/binding", sessionHandler.GetBinding)
				professor.GET("/:id/attendance", sessionHandler.GetAttendance)
				professor.GET("/:id/export", sessionHandler.ExportAttendance)
			}
		}

		checkin := api.Group("/checkin")
		checkin.Use(middleware.JWTAuth(authService), middleware.RequireRole(models.RoleStudent))
		{
			checkin.POST("", checkInHandler.CheckIn)
			checkin.GET("/history", checkInHandler.History)
		}
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
