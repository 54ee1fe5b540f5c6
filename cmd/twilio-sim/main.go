package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// messageState tracks one accepted message so status lookups stay
// consistent across polls.
type messageState struct {
	SID         string
	To          string
	From        string
	Body        string
	Status      string
	DateCreated time.Time
	DateSent    *time.Time
	ErrorCode   *int
	ErrorMsg    *string
}

// Simulator is a local stand-in for the Twilio Messages API. It accepts the
// same form-encoded create call, assigns SM-prefixed ids and walks accepted
// messages through queued -> sent -> delivered on subsequent lookups.
type Simulator struct {
	accountSID  string
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	rng         *rand.Rand

	mu       sync.Mutex
	messages map[string]*messageState
}

func NewSimulator(accountSID string, failureRate float64, minDelay, maxDelay time.Duration) *Simulator {
	return &Simulator{
		accountSID:  accountSID,
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		messages:    make(map[string]*messageState),
	}
}

func (s *Simulator) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failureRate
}

func (s *Simulator) randomDelay() time.Duration {
	delta := s.maxDelay - s.minDelay
	if delta <= 0 {
		return s.minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minDelay + time.Duration(s.rng.Int63n(int64(delta)))
}

func twilioTime(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

func messageJSON(m *messageState) gin.H {
	out := gin.H{
		"sid":          m.SID,
		"status":       m.Status,
		"to":           m.To,
		"from":         m.From,
		"body":         m.Body,
		"date_created": twilioTime(m.DateCreated),
	}
	if m.DateSent != nil {
		out["date_sent"] = twilioTime(*m.DateSent)
	}
	if m.ErrorCode != nil {
		out["error_code"] = *m.ErrorCode
		out["error_message"] = *m.ErrorMsg
	}
	return out
}

// CreateMessage mirrors POST /2010-04-01/Accounts/{sid}/Messages.json.
func (s *Simulator) CreateMessage(c *gin.Context) {
	to := c.PostForm("To")
	from := c.PostForm("From")
	body := c.PostForm("Body")

	if to == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    21604,
			"message": "A 'To' phone number is required.",
			"status":  http.StatusBadRequest,
		})
		return
	}
	if body == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    21602,
			"message": "Message body is required.",
			"status":  http.StatusBadRequest,
		})
		return
	}

	if s.shouldFail() || !strings.HasPrefix(to, "+") {
		log.Warn().Str("to", to).Msg("rejecting message")
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    21211,
			"message": fmt.Sprintf("The 'To' number %s is not a valid phone number.", to),
			"status":  http.StatusBadRequest,
		})
		return
	}

	msg := &messageState{
		SID:         "SM" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		To:          to,
		From:        from,
		Body:        body,
		Status:      "queued",
		DateCreated: time.Now(),
	}

	s.mu.Lock()
	s.messages[msg.SID] = msg
	s.mu.Unlock()

	log.Info().Str("sid", msg.SID).Str("to", to).Msg("message accepted")
	c.JSON(http.StatusCreated, messageJSON(msg))
}

// GetMessage mirrors GET /2010-04-01/Accounts/{sid}/Messages/{msgSid}.json.
// Each lookup advances the message lifecycle one step.
func (s *Simulator) GetMessage(c *gin.Context) {
	sid := c.Param("message_sid")
	sid = strings.TrimSuffix(sid, ".json")

	s.mu.Lock()
	msg, ok := s.messages[sid]
	if ok {
		switch msg.Status {
		case "queued":
			msg.Status = "sent"
			now := time.Now()
			msg.DateSent = &now
		case "sent":
			if s.rng.Float64() < 0.1 {
				msg.Status = "undelivered"
				code := 30003
				errMsg := "Unreachable destination handset"
				msg.ErrorCode = &code
				msg.ErrorMsg = &errMsg
			} else {
				msg.Status = "delivered"
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    20404,
			"message": "The requested resource was not found.",
			"status":  http.StatusNotFound,
		})
		return
	}

	time.Sleep(s.randomDelay())
	c.JSON(http.StatusOK, messageJSON(msg))
}

// GetAccount mirrors GET /2010-04-01/Accounts/{sid}.json.
func (s *Simulator) GetAccount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sid":           s.accountSID,
		"friendly_name": "SquareFt Simulator",
		"status":        "active",
		"type":          "Full",
	})
}

// UpdateConfig changes the failure rate at runtime.
func (s *Simulator) UpdateConfig(c *gin.Context) {
	var req struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if req.FailureRate != nil && *req.FailureRate >= 0 && *req.FailureRate <= 1.0 {
		s.mu.Lock()
		s.failureRate = *req.FailureRate
		s.mu.Unlock()
		log.Info().Float64("rate", *req.FailureRate).Msg("updated failure rate")
	}

	c.JSON(http.StatusOK, gin.H{"failure_rate": s.failureRate})
}

func SetupRouter(sim *Simulator) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	api := router.Group("/2010-04-01/Accounts")
	{
		api.POST("/:sid/Messages.json", sim.CreateMessage)
		api.GET("/:sid/Messages/:message_sid", sim.GetMessage)
		api.GET("/:sid.json", sim.GetAccount)
	}

	router.PUT("/config", sim.UpdateConfig)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	accountSID := getEnv("SIM_ACCOUNT_SID", "AC00000000000000000000000000000000")
	failureRate := getEnvFloat("SIM_FAILURE_RATE", 0.05)
	minDelay := getEnvDuration("SIM_MIN_DELAY", 10*time.Millisecond)
	maxDelay := getEnvDuration("SIM_MAX_DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("failure_rate", failureRate).
		Msg("starting Twilio simulator")

	sim := NewSimulator(accountSID, failureRate, minDelay, maxDelay)
	router := SetupRouter(sim)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
