package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanzong05/aimddlwr/internal/config"
	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/hanzong05/aimddlwr/internal/handler"
	"github.com/hanzong05/aimddlwr/internal/llm"
	"github.com/hanzong05/aimddlwr/internal/middleware"
	"github.com/hanzong05/aimddlwr/internal/notify"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/hanzong05/aimddlwr/internal/service"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Deps are the collaborators built outside the server. Generator may be nil
// and Notifier defaults to a no-op.
type Deps struct {
	Generator  llm.Generator
	Notifier   notify.Notifier
	KeyManager *crypto.KeyManager
	Trainer    service.Trainer
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	cfg    *config.Config
	deps   Deps
	runner *service.Runner
	logger *zap.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.HandleMethodNotAllowed = true

	if deps.Trainer == nil {
		deps.Trainer = service.SimulatedTrainer{}
	}

	s := &Server{
		router: router,
		db:     db,
		cfg:    cfg,
		deps:   deps,
		logger: logger.Named("server"),
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:    net.JoinHostPort("", cfg.Server.Port),
		Handler: router,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Repositories
	userRepo := repository.NewUserRepository(s.db, s.logger)
	patternRepo := repository.NewPatternRepository(s.db, s.logger)
	exampleRepo := repository.NewTrainingDataRepository(s.db, s.logger)
	feedbackRepo := repository.NewFeedbackRepository(s.db, s.logger)
	conversationRepo := repository.NewConversationRepository(s.db, s.logger)
	jobRepo := repository.NewJobRepository(s.db, s.logger)
	modelRepo := repository.NewModelRepository(s.db, s.logger)
	memoryRepo := repository.NewMemoryRepository(s.db, s.logger)

	// Services
	authService := service.NewAuthService(userRepo, s.deps.KeyManager, s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL, s.logger)
	selector := service.NewSelector(patternRepo, exampleRepo, s.deps.Generator, service.SelectorConfig{
		SystemPrompt: s.cfg.LLM.SystemPrompt,
		Timeout:      s.cfg.LLM.Timeout,
	}, s.logger)
	s.runner = service.NewRunner(jobRepo, modelRepo, s.deps.Trainer, s.deps.Notifier, s.cfg.Training.EpochDelay, s.logger)
	trainingService := service.NewTrainingService(jobRepo, exampleRepo, s.runner, service.NewSeeder(exampleRepo, s.logger),
		service.TrainingConfig{
			DefaultEpochs: s.cfg.Training.DefaultEpochs,
			MaxEpochs:     s.cfg.Training.MaxEpochs,
			SeedIfEmpty:   s.cfg.Training.SeedIfEmpty,
		}, s.logger)
	analyticsService := service.NewAnalyticsService(service.AnalyticsDeps{
		DB:       s.db,
		Patterns: patternRepo,
		Feedback: feedbackRepo,
		Examples: exampleRepo,
		Models:   modelRepo,
		Jobs:     jobRepo,
		Memories: memoryRepo,
		Selector: selector,
	}, s.logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, s.logger)
	chatHandler := handler.NewChatHandler(service.NewChatService(conversationRepo, selector, s.cfg.LLM.HistoryTurns, s.logger), s.logger)
	trainingHandler := handler.NewTrainingHandler(trainingService, s.logger)
	modelHandler := handler.NewModelHandler(service.NewModelService(modelRepo, s.logger), s.logger)
	learningHandler := handler.NewLearningHandler(
		service.NewPatternService(patternRepo, s.logger),
		service.NewFeedbackService(patternRepo, feedbackRepo, s.logger),
		analyticsService, s.logger)
	datasetHandler := handler.NewDatasetHandler(service.NewDatasetService(exampleRepo, s.logger), s.logger)
	memoryHandler := handler.NewMemoryHandler(service.NewMemoryService(memoryRepo, userRepo, s.deps.KeyManager, s.logger), s.logger)

	s.router.Use(gin.Recovery(), middleware.RequestLogger(s.logger))
	s.router.Use(middleware.CORS()...)
	s.router.NoMethod(handler.MethodNotAllowed)
	s.router.NoRoute(handler.NotFound)

	s.router.GET("/health", handler.Health)

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("", authHandler.Dispatch)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(authService, s.logger))
	{
		api.GET("/auth/me", authHandler.Me)

		api.POST("/ai/chat", chatHandler.Chat)
		api.GET("/conversations", chatHandler.ListConversations)
		api.GET("/conversations/:id", chatHandler.GetConversation)
		api.DELETE("/conversations/:id", chatHandler.DeleteConversation)

		api.POST("/ai/train", trainingHandler.Create)
		api.GET("/ai/train", trainingHandler.List)
		api.GET("/ai/train/:id", trainingHandler.Get)

		api.GET("/models", modelHandler.List)
		api.POST("/models/:id/activate", modelHandler.Activate)
		api.POST("/models/:id/archive", modelHandler.Archive)

		api.GET("/learning/patterns", learningHandler.ListPatterns)
		api.POST("/learning/patterns", learningHandler.CreatePattern)
		api.PUT("/learning/patterns", learningHandler.UpdatePattern)
		api.PUT("/learning/patterns/:id", learningHandler.UpdatePattern)
		api.DELETE("/learning/patterns", learningHandler.DeletePattern)
		api.DELETE("/learning/patterns/:id", learningHandler.DeletePattern)
		api.POST("/learning/feedback", learningHandler.SubmitFeedback)
		api.GET("/learning/feedback", learningHandler.ListFeedback)
		api.GET("/learning/analytics", learningHandler.Analytics)
		api.GET("/learning/health", learningHandler.Health)

		api.GET("/data/training", datasetHandler.List)
		api.POST("/data/training", datasetHandler.Create)
		api.PUT("/data/training", datasetHandler.Update)
		api.PUT("/data/training/:id", datasetHandler.Update)
		api.DELETE("/data/training", datasetHandler.Delete)
		api.DELETE("/data/training/:id", datasetHandler.Delete)

		api.POST("/brain/memories", memoryHandler.Create)
		api.GET("/brain/memories", memoryHandler.List)
		api.DELETE("/brain/memories/:id", memoryHandler.Delete)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Server starting", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then cancels background training and
// waits for it to settle.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)
	runnerErr := s.runner.Shutdown(ctx)
	return errors.Join(httpErr, runnerErr)
}
