package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"review-radar/config"
	"review-radar/models"
	"review-radar/providers/extraction"
	"review-radar/providers/scrapehub"
	"review-radar/services"
	"review-radar/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	reviewsIngestedCounter   prometheus.Counter
	analysesCompletedCounter prometheus.Counter
	analysesFailedCounter    prometheus.Counter
	aiCallsCounter           prometheus.Counter
)

func init() {
	reviewsIngestedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_ingested_total",
		Help: "Total number of new reviews added to the database.",
	})
	analysesCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analyses_completed_total",
		Help: "Total number of reviews that completed extraction.",
	})
	analysesFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analyses_failed_total",
		Help: "Total number of reviews whose extraction failed.",
	})
	aiCallsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ai_extraction_calls_total",
		Help: "Total number of successful AI extraction calls (billing).",
	})
	prometheus.MustRegister(reviewsIngestedCounter, analysesCompletedCounter, analysesFailedCounter, aiCallsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to review database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Review{}, &models.Analysis{}, &models.ScrapeRun{},
		&models.FlavorIndexSnapshot{}, &models.AIUsageCounter{})

	// External collaborators
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	datasetSource := scrapehub.NewClient(cfg, logging)
	aiClient, err := extraction.NewClient(cfg, logging)
	if err != nil {
		logging.Fatal("Extraction client creation failed", zap.Error(err))
	}

	// Pipeline services
	ingestService := services.NewIngestService(cfg, db, s3Client, datasetSource, logging)
	claimService := services.NewClaimService(db, logging, cfg.ClaimCeiling)
	reviewStore := services.NewReviewStore(db, logging)
	usageTracker := services.NewUsageTracker(db, logging, aiCallsCounter)
	worker := &services.ExtractionWorker{
		Store:            reviewStore,
		Claimer:          claimService,
		AI:               aiClient,
		Usage:            usageTracker,
		Logger:           logging,
		CompletedCounter: analysesCompletedCounter,
		FailedCounter:    analysesFailedCounter,
	}
	orchestrator := services.NewOrchestrator(worker, claimService, logging)
	orchestrator.Concurrency = cfg.WorkerConcurrency
	orchestrator.BatchSize = cfg.WorkerBatchSize
	orchestrator.Cooldown = cfg.Cooldown()
	orchestrator.CircuitThreshold = cfg.CircuitThreshold
	orchestrator.RefreshRounds = cfg.PendingRefreshRounds
	aggregationService := services.NewAggregationService(db, logging)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupWebhookRoutes(router, ingestService, logging)
	setupPipelineRoutes(router, claimService, worker, orchestrator, db, logging)
	setupReviewRoutes(router, db, logging)
	setupSnapshotRoutes(router, aggregationService, logging)

	// Recovery sweep plus the nightly pipeline run
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.SweepSchedule, func() {
		count, err := claimService.ReclaimStuck(context.Background(), cfg.ProcessingTimeout())
		if err != nil {
			logging.Error("Recovery sweep failed", zap.Error(err))
		} else if count > 0 {
			logging.Info("Recovery sweep completed", zap.Int64("reclaimed", count))
		}
	})
	cronScheduler.AddFunc(cfg.PipelineSchedule, func() {
		logging.Info("Running scheduled pipeline...")
		summary, err := orchestrator.Run(context.Background())
		if err != nil {
			logging.Error("Scheduled pipeline run failed", zap.Error(err))
		} else {
			logging.Info("Scheduled pipeline run completed",
				zap.Int("processed", summary.Processed),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupWebhookRoutes(router *gin.Engine, ingest *services.IngestService, log *zap.Logger) {
	rg := router.Group("/webhooks")

	// Scrape providers deliver at-least-once; the handler is idempotent.
	rg.POST("/scrape-complete", func(c *gin.Context) {
		var notification services.Notification
		if err := c.ShouldBindJSON(&notification); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification body"})
			return
		}

		if notification.Status != "" && notification.Status != "succeeded" {
			log.Info("Skipping non-success scrape run",
				zap.String("run_id", notification.RunID),
				zap.String("status", notification.Status))
			c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": true, "reason": "run status " + notification.Status})
			return
		}

		counts, err := ingest.HandleNotification(c.Request.Context(), notification)
		if err != nil {
			log.Error("Ingestion failed", zap.String("run_id", notification.RunID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ingestion failed"})
			return
		}
		reviewsIngestedCounter.Add(float64(counts.Inserted))
		c.JSON(http.StatusOK, gin.H{"ok": true, "counts": counts})
	})
}

func setupPipelineRoutes(router *gin.Engine, claims *services.ClaimService, worker *services.ExtractionWorker, orchestrator *services.Orchestrator, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/pipeline")

	rg.POST("/claim", func(c *gin.Context) {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.Limit <= 0 {
			req.Limit = 10
		}
		ids, err := claims.Claim(c.Request.Context(), req.Limit)
		if err != nil {
			log.Error("Claim failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claim failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"review_ids": ids})
	})

	rg.POST("/process", func(c *gin.Context) {
		var req struct {
			ReviewIDs []uint `json:"review_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "review_ids required"})
			return
		}
		result, err := worker.Process(c.Request.Context(), req.ReviewIDs)
		if err != nil {
			log.Error("Batch processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	rg.POST("/run", func(c *gin.Context) {
		go func() {
			summary, err := orchestrator.Run(context.Background())
			if errors.Is(err, services.ErrCircuitOpen) {
				log.Error("Pipeline halted by circuit breaker",
					zap.Int("rounds", summary.Rounds), zap.Int("processed", summary.Processed))
				return
			}
			if err != nil {
				log.Error("Async pipeline run failed", zap.Error(err))
				return
			}
			log.Info("Async pipeline run completed",
				zap.Int("processed", summary.Processed),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run triggered."})
	})

	rg.POST("/retry", func(c *gin.Context) {
		var filter services.ResetFilter
		if err := c.ShouldBindJSON(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		count, err := claims.ResetToPending(c.Request.Context(), filter)
		if err != nil {
			log.Error("Retry reset failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": count})
	})

	rg.GET("/status", func(c *gin.Context) {
		counts, err := claims.StatusCounts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var runs []models.ScrapeRun
		if err := db.Order("created_at desc").Limit(10).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status_counts": counts, "recent_runs": runs})
	})
}

func setupReviewRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/reviews")

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var review models.Review
		if err := db.First(&review, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
				return
			}
			log.Error("DB error fetching review", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var analysis models.Analysis
		if err := db.Where("review_id = ?", review.ID).First(&analysis).Error; err == nil {
			c.JSON(http.StatusOK, gin.H{"review": review, "analysis": analysis})
			return
		}
		c.JSON(http.StatusOK, gin.H{"review": review})
	})

	rg.POST("/query", func(c *gin.Context) {
		type ReviewQuery struct {
			RestaurantID   uint   `json:"restaurant_id"`
			Platform       string `json:"platform"`
			AnalysisStatus string `json:"analysis_status"`
			MinRating      *int   `json:"min_rating"`
			MaxRating      *int   `json:"max_rating"`
			Limit          int    `json:"limit"`
		}

		var req ReviewQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Review{})
		if req.RestaurantID != 0 {
			query = query.Where("restaurant_id = ?", req.RestaurantID)
		}
		if req.Platform != "" {
			query = query.Where("platform = ?", req.Platform)
		}
		if req.AnalysisStatus != "" {
			query = query.Where("analysis_status = ?", req.AnalysisStatus)
		}
		if req.MinRating != nil {
			query = query.Where("rating >= ?", *req.MinRating)
		}
		if req.MaxRating != nil {
			query = query.Where("rating <= ?", *req.MaxRating)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var reviews []models.Review
		if err := query.Order("posted_at desc").Find(&reviews).Error; err != nil {
			log.Error("Database query for reviews failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, reviews)
	})
}

func setupSnapshotRoutes(router *gin.Engine, agg *services.AggregationService, log *zap.Logger) {
	rg := router.Group("/snapshots")

	rg.GET("/:restaurantId", func(c *gin.Context) {
		restaurantID, err := strconv.ParseUint(c.Param("restaurantId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid restaurant id"})
			return
		}
		start, end, err := parsePeriod(c.Query("start"), c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snapshot, err := agg.ComputeSnapshot(c.Request.Context(), uint(restaurantID), start, end)
		if err != nil {
			log.Error("Snapshot computation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot computation failed"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	rg.POST("/compare", func(c *gin.Context) {
		var req struct {
			RestaurantIDs []uint `json:"restaurant_ids" binding:"required"`
			PeriodStart   string `json:"period_start"`
			PeriodEnd     string `json:"period_end"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "restaurant_ids required"})
			return
		}
		start, end, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snapshots, err := agg.ComputeCompetitorSnapshots(c.Request.Context(), req.RestaurantIDs, start, end)
		if err != nil {
			log.Error("Competitor snapshot computation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot computation failed"})
			return
		}

		type rankedSnapshot struct {
			*models.FlavorIndexSnapshot
			Rank int `json:"rank"`
		}
		ranked := make([]rankedSnapshot, 0, len(snapshots))
		for i, snap := range snapshots {
			others := make([]float64, 0, len(snapshots)-1)
			for j, other := range snapshots {
				if j != i {
					others = append(others, other.Score)
				}
			}
			ranked = append(ranked, rankedSnapshot{
				FlavorIndexSnapshot: snap,
				Rank:                services.RankAmong(snap.Score, others),
			})
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": ranked})
	})
}

// parsePeriod reads the period bounds (YYYY-MM-DD); defaults to the last 30
// days ending today.
func parsePeriod(startStr, endStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.AddDate(0, 0, -30)
	end := now

	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start date, expected YYYY-MM-DD")
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end date, expected YYYY-MM-DD")
		}
		// inclusive through end of day
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end date before start date")
	}
	return start, end, nil
}
