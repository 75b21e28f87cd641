package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/annel0/voxel-detach/internal/middleware"
	"github.com/annel0/voxel-detach/internal/physics"
	"github.com/annel0/voxel-detach/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer REST API отладки и администрирования группы матриц.
// Группа не потокобезопасна, поэтому каждый обработчик берёт mu целиком.
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	port       string
	metrics    *ServerMetrics

	mu      sync.Mutex
	group   *detached.Group
	query   *physics.Query
	storage *storage.MatrixStorage
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                 // порт для запуска сервера
	Group    *detached.Group        // обслуживаемая группа
	Storage  *storage.MatrixStorage // может быть nil, тогда снимки недоступны
	Service  string                 // имя сервиса для otel и prometheus
	Registry *prometheus.Registry   // nil означает дефолтный регистр
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Service == "" {
		config.Service = "detach_api"
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.Service))
	router.Use(middleware.NewRequestLogger(logging.GetAPILogger(), "/health", "/metrics").Handler())

	var (
		reg      prometheus.Registerer
		gatherer prometheus.Gatherer
	)
	if config.Registry != nil {
		reg, gatherer = config.Registry, config.Registry
	}
	promMw := middleware.NewPrometheusMiddleware(config.Service, reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	server := &RestServer{
		router: router,
		httpServer: &http.Server{
			Addr:              config.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		port:    config.Port,
		metrics: NewServerMetrics(),
		group:   config.Group,
		query:   physics.NewQuery(config.Group),
		storage: config.Storage,
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)

		matrices := api.Group("/matrices")
		matrices.GET("", rs.handleListMatrices)
		matrices.POST("", rs.handleCreateMatrix)
		matrices.GET("/:id", rs.handleGetMatrix)
		matrices.DELETE("/:id", rs.handleDeleteMatrix)
		matrices.PUT("/:id/transform", rs.handleSetTransform)

		api.POST("/resolve", rs.handleResolve)
		api.POST("/place", rs.handlePlace)
		api.POST("/collisions", rs.handleCollisions)

		snapshots := api.Group("/snapshots")
		snapshots.GET("", rs.handleListSnapshots)
		snapshots.POST("/:name", rs.handleSaveSnapshot)
		snapshots.POST("/:name/restore", rs.handleRestoreSnapshot)
		snapshots.DELETE("/:name", rs.handleDeleteSnapshot)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler роутера
func (rs *RestServer) Handler() http.Handler { return rs.router }

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику группы и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	rs.mu.Lock()
	group := map[string]interface{}{
		"matrices":   rs.group.Len(),
		"meshes":     rs.group.MeshCount(),
		"chunk_size": rs.group.ChunkSize(),
		"cube_size":  rs.group.CubeSize(),
	}
	rs.mu.Unlock()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: map[string]interface{}{
			"group":   group,
			"process": rs.metrics.Snapshot(),
		},
	})
}

// respondError переводит ошибки группы в HTTP статусы
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, detached.ErrNotFound), errors.Is(err, storage.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, detached.ErrBlocked):
		status = http.StatusConflict
	case errors.Is(err, detached.ErrNoIntersection),
		errors.Is(err, detached.ErrNoEmptySlot),
		errors.Is(err, detached.ErrInvalidRay),
		errors.Is(err, detached.ErrInvalidTransform),
		errors.Is(err, detached.ErrOutOfRange):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		logging.GetAPILogger().Error("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
}

func matrixID(c *gin.Context) (detached.MatrixID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "неверный id матрицы"})
		return 0, false
	}
	return detached.MatrixID(id), true
}

// Start запускает REST сервер и блокируется до остановки
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop завершает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.httpServer.Shutdown(ctx)
}
