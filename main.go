package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ci-mapping/config"
	"ci-mapping/services"
	"ci-mapping/storage"
)

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

	store, err := storage.OpenPostgres(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	metrics := services.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logging.Fatal("Metric registration failed", zap.Error(err))
	}

	flow, err := services.NewMAGFlow(cfg, store, logging, metrics)
	if err != nil {
		logging.Fatal("Pipeline setup failed", zap.Error(err))
	}
	pipeline, err := flow.Pipeline()
	if err != nil {
		logging.Fatal("Invalid step graph", zap.Error(err))
	}

	graph, err := storage.OpenGraph(context.Background(), cfg, logging)
	if err != nil {
		logging.Warn("Neo4j not available, graph export disabled", zap.Error(err))
	}
	defer graph.Close(context.Background())

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupPipelineRoutes(router, pipeline, logging)
	setupPaperRoutes(router, store.DB, logging)
	setupAnalysisRoutes(router, store.DB, graph, cfg, logging)

	// Setup Cron
	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled pipeline run...")
			if err := pipeline.Run(context.Background()); err != nil {
				logging.Error("Cron job failed", zap.Error(err))
				return
			}
			logging.Info("Cron job completed")
		})
		if err != nil {
			logging.Fatal("Invalid CRON_SCHEDULE", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

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

// setupPipelineRoutes startet Läufe asynchron; während eines Laufs gibt es 409.
func setupPipelineRoutes(router *gin.Engine, pipeline *services.Pipeline, log *zap.Logger) {
	rg := router.Group("/pipeline")

	rg.POST("/run", func(c *gin.Context) {
		var req struct {
			Steps []string `json:"steps"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		done, err := pipeline.RunAsync(context.Background(), req.Steps...)
		if errors.Is(err, services.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		go func() {
			if err := <-done; err != nil {
				log.Error("Async pipeline run failed", zap.Error(err))
				return
			}
			log.Info("Async pipeline run completed")
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run triggered.", "steps": req.Steps})
	})

	rg.GET("/steps", func(c *gin.Context) {
		type stepInfo struct {
			Name      string   `json:"name"`
			DependsOn []string `json:"depends_on"`
			Wave      int      `json:"wave"`
		}
		var out []stepInfo
		for i, wave := range pipeline.Waves() {
			for _, name := range wave {
				step, _ := pipeline.Step(name)
				out = append(out, stepInfo{Name: name, DependsOn: step.DependsOn, Wave: i})
			}
		}
		c.JSON(http.StatusOK, out)
	})
}

func setupPaperRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
			return
		}
		paper, err := services.LoadPaper(db, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		if err != nil {
			log.Error("Database query for paper failed", zap.Int64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupAnalysisRoutes(router *gin.Engine, db *gorm.DB, graph *storage.GraphStore, cfg *config.Config, log *zap.Logger) {
	router.GET("/cohorts", func(c *gin.Context) {
		counts, err := services.CohortCounts(db)
		if err != nil {
			log.Error("Database query for cohorts failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, counts)
	})

	// Kookkurrenz-Graph; ?cohort=ci&cohort=ai_ci&min_weight=15, ohne Angaben gelten die Werte aus der Konfiguration
	router.GET("/cooccurrence", func(c *gin.Context) {
		cohorts := c.QueryArray("cohort")
		if len(cohorts) == 0 {
			cohorts = cfg.CooccurrenceCohorts
		}
		minWeight := cfg.CooccurrenceMinWeight
		if v := c.Query("min_weight"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_weight"})
				return
			}
			minWeight = n
		}

		edges, err := services.CooccurrenceEdges(db, cohorts, minWeight)
		if err != nil {
			log.Error("Cooccurrence query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		if c.Query("export") == "neo4j" {
			if graph == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "neo4j is not configured"})
				return
			}
			if err := services.ExportCooccurrence(c.Request.Context(), graph, graphName(cohorts), edges); err != nil {
				log.Error("Neo4j export failed", zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "neo4j export failed"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"cohorts": cohorts, "min_weight": minWeight, "edges": edges})
	})
}

func graphName(cohorts []string) string {
	name := "cooccurrence"
	for _, c := range cohorts {
		name += "_" + c
	}
	return name
}
