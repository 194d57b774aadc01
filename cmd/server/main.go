package main

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/config"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/database"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/handlers"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/jobs"
	applog "github.com/JosteinSandKjellsen/hero-app-sub000/internal/log"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/middleware"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ratelimit"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ws"

	_ "github.com/JosteinSandKjellsen/hero-app-sub000/docs"
)

// @title           Hero App API
// @version         1.0
// @description     API for the superhero personality quiz: hero generation, sessions and statistics
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()
	logger := applog.New(cfg.Environment)

	db := database.Connect(cfg, logger)
	database.AutoMigrate(db, logger)

	// Attempt tracking is per instance unless a shared Redis backend is
	// configured.
	var attempts ratelimit.AttemptStore = ratelimit.NewMemoryStore()
	if cfg.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		attempts = ratelimit.NewRedisStore(client)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using shared login attempt store")
	}

	hub := ws.NewHub(logger)

	scoringService := services.NewScoringService(logger)
	nameService := services.NewHeroNameService(cfg.TextAPIKey, cfg.TextAPIURL, cfg.TextModel, logger)
	imageService := services.NewAIImageService(cfg.ImageAPIKey, cfg.ImageAPIURL, cfg.ImageModel, cfg.ImageStyle, logger)
	mailerService := services.NewMailerService(cfg.MailAPIKey, cfg.MailAPIURL, cfg.MailFrom, cfg.MailFromName, logger)
	authService := services.NewAuthService(db, cfg.JWTSecret, attempts)
	sessionService := services.NewSessionService(db)
	heroService := services.NewHeroService(db)
	quizService := services.NewQuizService(scoringService, nameService, imageService, heroService, sessionService, logger)
	quizService.OnAccepted(func(hero *models.Hero) {
		hub.Broadcast(ws.TopicCarousel, ws.WSMessage{Type: "hero", Data: hero})
	})

	authHandler := handlers.NewAuthHandler(authService)
	heroHandler := handlers.NewHeroHandler(nameService, imageService, heroService, scoringService, mailerService, cfg.Environment, logger)
	quizHandler := handlers.NewQuizHandler(quizService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	statsHandler := handlers.NewStatsHandler(heroService, imageService, scoringService, hub, logger)
	wsHandler := handlers.NewWSHandler(hub)

	sweep := jobs.NewRetentionSweep(heroService, imageService, logger)
	if err := sweep.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start retention sweep")
	}
	defer sweep.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/carousel", wsHandler.HandleCarousel)
	r.GET("/ws/stats", wsHandler.HandleStats)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		quiz := api.Group("/quiz")
		{
			quiz.POST("", quizHandler.Start)
			quiz.GET("/questions", quizHandler.Questions)
			quiz.GET("/:id", quizHandler.Get)
			quiz.POST("/:id/answers", quizHandler.Answer)
			quiz.POST("/:id/photo", quizHandler.SubmitPhoto)
			quiz.POST("/:id/accept", quizHandler.Accept)
			quiz.POST("/:id/retry", quizHandler.Retry)
			quiz.POST("/:id/reset", quizHandler.Reset)
		}

		api.POST("/hero-name", heroHandler.GenerateName)
		api.POST("/hero-image", heroHandler.GenerateImage)
		api.DELETE("/hero-image/delete", heroHandler.DeleteImage)
		api.GET("/hero-image/:id", heroHandler.GetImage)
		api.POST("/hero-card/send", heroHandler.SendHeroCard)

		api.POST("/hero-stats", statsHandler.CreateStat)
		api.GET("/hero-stats", statsHandler.GetStats)

		api.POST("/latest-heroes", statsHandler.CreateHero)
		api.GET("/latest-heroes", statsHandler.ListHeroes)
		api.PUT("/latest-heroes/:id", middleware.JWTAuth(authService), statsHandler.UpdateHero)
		api.DELETE("/latest-heroes/:id", middleware.JWTAuth(authService), statsHandler.DeleteHero)

		sessions := api.Group("/sessions")
		{
			sessions.GET("", sessionHandler.List)
			sessions.GET("/resolve", sessionHandler.Resolve)
			sessions.POST("", middleware.JWTAuth(authService), sessionHandler.Create)
			sessions.PUT("/:id", middleware.JWTAuth(authService), sessionHandler.Update)
			sessions.DELETE("/:id", middleware.JWTAuth(authService), sessionHandler.Delete)
		}
	}

	logger.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
