package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/squareft/sms-gateway/internal/config"
	"github.com/squareft/sms-gateway/internal/handlers"
	"github.com/squareft/sms-gateway/internal/queue"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/internal/services"
	"github.com/squareft/sms-gateway/internal/twilio"
	xhttp "github.com/squareft/sms-gateway/pkg/http"
	"github.com/squareft/sms-gateway/pkg/logger"
	"github.com/squareft/sms-gateway/pkg/pg"
	"github.com/squareft/sms-gateway/pkg/prom"
	"github.com/squareft/sms-gateway/pkg/redis"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	host, _ := os.Hostname()
	if config.Get().AppDebugMetricsAddr != "" {
		if err := prom.Create(host, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
			logger.Error("failed to register metrics", "error", err)
		}
		go prom.ListenAndServe(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	refreshQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	twilioClient, err := twilio.NewClient(twilio.Config{
		AccountSID: config.Get().TwilioAccountSID,
		AuthToken:  config.Get().TwilioAuthToken,
		From:       config.Get().TwilioFromNumber,
		BaseURL:    config.Get().TwilioBaseURL,
		Timeout:    time.Duration(config.Get().TwilioTimeout) * time.Millisecond,
	})
	if err != nil {
		logger.Error("failed creating twilio client", "error", err)
		return
	}

	deliveryRepo := repository.NewDeliveryRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	smsService := services.NewSMSService(twilioClient, deliveryRepo, refreshQueue, config.Get().DefaultCountryCode)
	sessionService := services.NewSessionService(redisAdap, config.Get().SessionTTL)
	badgeService := services.NewBadgeService(ticketRepo, sessionService, redisAdap, config.Get().BadgeInterval)

	smsHandler := handlers.NewSMSHandler(smsService)
	extensionHandler := handlers.NewExtensionHandler(badgeService, sessionService)

	g := s.Router.Group("/api")
	handlers.RegisterSMSRoutes(g, smsHandler)
	handlers.RegisterExtensionRoutes(g, extensionHandler)
	handlers.RegisterHealthRoutes(s.Router)

	s.Use(handlers.RouteMiddleware(sessionService, handlers.RouteConfig{
		ProtectedPrefix: config.Get().ProtectedPrefix,
		DashboardPath:   config.Get().DashboardPath,
		LegacyPrefixes:  config.Get().LegacyPrefixes,
	}))

	badgeCtx, stopBadge := context.WithCancel(context.Background())
	go badgeService.Run(badgeCtx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	stopBadge()
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
