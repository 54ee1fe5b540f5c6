package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/squareft/sms-gateway/internal/config"
	"github.com/squareft/sms-gateway/internal/queue"
	"github.com/squareft/sms-gateway/internal/refresher"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/internal/twilio"
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

	db, err := pg.CreateReadWrite(readConf, writeConf, false)
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

	queueConfig := queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	}

	// non-terminal statuses are re-queued through the same stream
	requeue, err := queue.NewQueue(redisAdap, queueConfig)
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	deliveryRepo := repository.NewDeliveryRepository(db)
	processor := refresher.NewStatusProcessor(twilioClient, deliveryRepo, requeue)

	service, err := refresher.New(redisAdap, processor, refresher.Config{
		Queue:     queueConfig,
		Consumers: 4,
		Workers:   50,
	})
	if err != nil {
		logger.Error("failed creating refresher service", "error", err)
		return
	}

	if err := service.Start(); err != nil {
		logger.Error("failed starting refresher service", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	service.Stop()
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
