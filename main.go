package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-broker/internal/broker"
	"chat-broker/internal/config"
	"chat-broker/internal/db"
	"chat-broker/internal/handlers"
	"chat-broker/internal/moderation"
	"chat-broker/internal/observability"
	"chat-broker/internal/presence"
	"chat-broker/internal/rabbitmq"
	"chat-broker/internal/repositories"
	"chat-broker/internal/telemetry"
	"chat-broker/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chat-broker").Logger()

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.OTLPEndpoint, "chat-broker")
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	if shutdownTracing != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()
	}

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer auditPublisher.Close()
	logger.Info().Str("mode", rabbitmq.PublisherMode(auditPublisher)).Msg("audit publisher ready")

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	} else {
		logger.Warn().Err(err).Msg("session event publishing disabled")
	}

	emitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, "chat-broker", cfg.Environment, logger)

	filter, err := moderation.NewFilter(cfg.BlockedWords, '*')
	if err != nil {
		log.Fatalf("failed to build content filter: %v", err)
	}

	teamRepo := repositories.NewTeamRepo(database)
	positions := presence.NewStore()
	registry := broker.NewRegistry()
	history := broker.NewHistory()
	router := broker.NewRouter(registry, teamRepo, positions, broker.TeamFallback(cfg.TeamFallback), logger)

	hub := ws.NewHub(logger)
	chatBroker := broker.NewBroker(registry, history, router, hub, filter, cfg.Chat, logger)

	messageHandler := handlers.NewMessageHandler(chatBroker, emitter)
	adminHandler := handlers.NewAdminHandler(chatBroker, emitter)
	teamHandler := handlers.NewTeamHandler(teamRepo, emitter)
	sessionWS := ws.NewSessionHandler(hub, chatBroker, positions, cfg.ReplayCount, logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("chat-broker"))
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.POST("/session/:participant_id/messages", messageHandler.PostMessage)
	engine.GET("/history", messageHandler.GetHistory)
	engine.DELETE("/history", messageHandler.ClearHistory)
	engine.GET("/settings", adminHandler.GetSettings)
	engine.PUT("/settings", adminHandler.PutSettings)
	engine.POST("/system", adminHandler.PostSystem)

	engine.POST("/teams", teamHandler.CreateTeam)
	engine.PUT("/teams/:team_id/members/:participant_id", teamHandler.AssignMember)
	engine.DELETE("/teams/members/:participant_id", teamHandler.RemoveMember)
	engine.GET("/participants/:participant_id/team", teamHandler.GetTeamOf)

	engine.GET("/ws/session/:participant_id", sessionWS.Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(engine, emitter, cfg.DebugRoutes)

	logger.Info().Str("addr", cfg.HTTPAddress()).Msg("chat broker listening")
	if err := engine.Run(cfg.HTTPAddress()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
