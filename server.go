package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxtick/luxtick_backend/agent"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/middlewares"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/luxtick/luxtick_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// app bundles the long-lived pieces the handlers share. Built lazily
// because the HTTP server starts listening before the database is up.
type app struct {
	dispatcher *agent.Dispatcher
	pipeline   *workflow.ReceiptPipeline
}

var (
	appOnce     sync.Once
	appInstance *app
	appErr      error
)

func getApp() (*app, error) {
	appOnce.Do(func() {
		client, err := agent.NewOpenAIClient()
		if err != nil {
			appErr = err
			return
		}
		db := config.GetDB()
		registry := agent.BuildRegistry(&agent.Service{DB: db})
		appInstance = &app{
			dispatcher: agent.NewDispatcher(client, registry),
			pipeline:   workflow.NewReceiptPipeline(db, agent.NewReceiptParser(client)),
		}
		if config.ItemIntelligenceEnabled() {
			workflow.SetProductAdvisor(agent.NewProductAdvisor(client))
		}
	})
	return appInstance, appErr
}

type inboundMessage struct {
	TelegramId     int64  `json:"telegram_id" binding:"required"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text" binding:"required"`
}

func messageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var msg inboundMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		a, err := getApp()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		user, err := models.EnsureUser(c.Request.Context(), msg.TelegramId, msg.Username, msg.FirstName)
		if err != nil {
			config.LogError(logger, "server.go", "messageHandler", "ensure user", msg.TelegramId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)
		ctx = utils.SetTelegramIdInContext(ctx, msg.TelegramId)
		if msg.ConversationId != "" {
			ctx = utils.SetConversationIdInContext(ctx, msg.ConversationId)
		}

		// One turn at a time per conversation. A second message while a
		// turn is running waits briefly, then gets a busy answer.
		lockKey := "lock:conv:" + conversationKey(user.ID, msg.ConversationId)
		lock, err := config.GetRedisLock().Obtain(ctx, lockKey, 90*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(500*time.Millisecond), 6),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "still working on the previous message"})
			return
		}
		if err != nil {
			config.LogError(logger, "server.go", "messageHandler", "obtain lock", lockKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer lock.Release(context.WithoutCancel(ctx))

		reply, err := a.dispatcher.Respond(ctx, user.ID, agent.NewConversation(user, msg.Text))
		if err != nil && !errors.Is(err, utils.ErrorTurnBudgetExceeded) {
			config.LogError(logger, "server.go", "messageHandler", "respond", msg.Text, err)
			if errors.Is(err, utils.ErrorModelUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant is unavailable, try again shortly"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{"reply": reply, "correlation_id": cid})
	}
}

type inboundPhoto struct {
	TelegramId  int64  `json:"telegram_id" binding:"required"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	ImageBase64 string `json:"image_base64" binding:"required"`
}

func photoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var msg inboundPhoto
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		image, err := base64.StdEncoding.DecodeString(msg.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image_base64 is not valid base64"})
			return
		}

		a, err := getApp()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		user, err := models.EnsureUser(c.Request.Context(), msg.TelegramId, msg.Username, msg.FirstName)
		if err != nil {
			config.LogError(logger, "server.go", "photoHandler", "ensure user", msg.TelegramId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		ctx := utils.SetUserIdInContext(c.Request.Context(), user.ID)

		result, err := a.pipeline.IngestReceiptImage(ctx, user.ID, image)
		if err != nil {
			config.LogError(logger, "server.go", "photoHandler", "ingest", user.ID, err)
			respondIngestError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"draft_id": result.Draft.ID,
			"reply":    result.Summary,
		})
	}
}

type confirmRequest struct {
	TelegramId  int64                     `json:"telegram_id" binding:"required"`
	Corrections []workflow.LineCorrection `json:"corrections"`
}

func confirmHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		user, err := models.GetUserByTelegramId(c.Request.Context(), config.GetDB(), req.TelegramId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}

		receipt, err := workflow.FinalizeDraft(c.Request.Context(), config.GetDB(), user.ID, c.Param("draftId"), req.Corrections)
		if err != nil {
			respondDraftError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"receipt_id": receipt.ID,
			"total":      receipt.Total,
			"items":      len(receipt.Items),
		})
	}
}

type discardRequest struct {
	TelegramId int64 `json:"telegram_id" binding:"required"`
}

func discardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		user, err := models.GetUserByTelegramId(c.Request.Context(), config.GetDB(), req.TelegramId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}

		if err := workflow.DiscardDraft(c.Request.Context(), config.GetDB(), user.ID, c.Param("draftId")); err != nil {
			respondDraftError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func draftStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		telegramId, ok := parseTelegramIdQuery(c)
		if !ok {
			return
		}
		user, err := models.GetUserByTelegramId(c.Request.Context(), config.GetDB(), telegramId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}

		draft, err := models.GetDraftForUser(c.Request.Context(), config.GetDB(), user.ID, c.Param("draftId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		c.JSON(http.StatusOK, draft)
	}
}

func respondIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorExtractionFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not read the receipt, try a sharper photo"})
	case errors.Is(err, utils.ErrorValidationFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "receipt data was incomplete, try another photo"})
	case errors.Is(err, utils.ErrorModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision service is unavailable, try again shortly"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func respondDraftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
	case errors.Is(err, utils.ErrorDraftNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "draft was already discarded"})
	case errors.Is(err, utils.ErrorFinalizationConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "draft was already finalized"})
	case errors.Is(err, utils.ErrorValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseTelegramIdQuery(c *gin.Context) (int64, bool) {
	raw := c.Query("telegram_id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id is required"})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id must be a number"})
		return 0, false
	}
	return id, true
}

// Ops tooling: requeue an outbox record that went DEAD/FAILED.
type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminToken := strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))
		if adminToken == "" || c.GetHeader("x-admin-token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}

		now := time.Now().UTC()
		if err := config.GetDB().WithContext(c.Request.Context()).
			Model(&models.AuditEventRecord{}).
			Where("id = ?", req.RecordId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func conversationKey(userId int, conversationId string) string {
	if conversationId != "" {
		return conversationId
	}
	return "user-" + strconv.Itoa(userId)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id", "x-telegram-id", "x-admin-token")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.RateLimitMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/webhook/message", messageHandler())
	r.POST("/webhook/photo", photoHandler())
	r.POST("/webhook/photo/by-key", photoByKeyHandler())
	r.POST("/uploads/receipts/sign", signReceiptUploadHandler())
	r.GET("/receipts/drafts/:draftId", draftStatusHandler())
	r.POST("/receipts/drafts/:draftId/confirm", confirmHandler())
	r.POST("/receipts/drafts/:draftId/discard", discardHandler())
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	config.ConnectReadOnlyDatabase()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Background workers: outbox publisher and draft expiry sweeper.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	go workflow.RunDraftExpiry(workerCtx, db, time.Hour)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
