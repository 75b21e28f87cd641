package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-detach/internal/api"
	"github.com/annel0/voxel-detach/internal/config"
	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/eventbus"
	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/annel0/voxel-detach/internal/mesh"
	"github.com/annel0/voxel-detach/internal/observability"
	"github.com/annel0/voxel-detach/internal/storage"
	"github.com/annel0/voxel-detach/internal/voxel"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $DETACH_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// === ЛОГИРОВАНИЕ ===
	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🧊 Запуск сервиса отсоединённых матриц...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	defer bus.Close()

	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ Не удалось подписать логирующий слушатель: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil)
	busMetrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))

	// === ГРУППА МАТРИЦ ===
	group, err := newGroup(cfg, bus)
	if err != nil {
		log.Fatalf("❌ Ошибка создания группы матриц: %v", err)
	}

	// === ХРАНИЛИЩЕ СНИМКОВ ===
	matrixStorage, err := storage.NewMatrixStorage(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища снимков: %v", err)
	}
	defer matrixStorage.Close()

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	rest := api.NewRestServer(api.Config{
		Port:    restPort,
		Group:   group,
		Storage: matrixStorage,
		Service: "detach_api",
	})
	go func() {
		if err := rest.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			cancel()
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Метрики шины: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case <-ctx.Done():
		logging.Warn("⚠️ REST API остановился, завершение работы...")
	}

	// === GRACEFUL SHUTDOWN ===
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := rest.Stop(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := busMetrics.Stop(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}

	logging.Info("👋 Сервис успешно остановлен")
}

// setupLogging открывает файловый логгер процесса и настраивает логгеры компонентов
func setupLogging(cfg config.LoggingConfig) error {
	console, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return err
	}
	file, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		return err
	}
	overrides := make(map[string]logging.LogLevel, len(cfg.Components))
	for component, level := range cfg.Components {
		lvl, err := logging.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("logging.components.%s: %w", component, err)
		}
		overrides[component] = lvl
	}

	logging.LogDir = cfg.Dir
	if err := logging.InitDefaultLogger(cfg.Component); err != nil {
		return err
	}
	logging.DefaultLogger().SetLevels(console, file)
	logging.GetLoggerManager().Configure(logging.Settings{
		FileOutput: true,
		Console:    console,
		File:       file,
		Overrides:  overrides,
	})
	return nil
}

// newEventBus выбирает JetStream, если задан url, иначе in-memory шину
func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий: in-memory (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{
		URL:       cfg.URL,
		Stream:    cfg.Stream,
		Retention: time.Duration(cfg.Retention) * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🚌 Шина событий: JetStream %s (стрим %s)", cfg.URL, cfg.Stream)
	return bus, nil
}

func newGroup(cfg *config.Config, bus eventbus.EventBus) (*detached.Group, error) {
	kind, err := mesh.ParseKind(cfg.Mesh.Kind)
	if err != nil {
		return nil, err
	}

	opts := detached.DefaultOptions()
	opts.ChunkSize = cfg.Voxel.ChunkSize
	opts.CubeSize = cfg.Voxel.CubeSize
	opts.Placement = detached.PlacementConfig{
		InitialOffset:  cfg.Placement.InitialOffset,
		StepFraction:   cfg.Placement.StepFraction,
		MaxOffsetCubes: cfg.Placement.MaxOffsetCubes,
	}
	gen := voxel.NewGenerator(cfg.Voxel.ChunkSize)
	gen.MaxVolume = cfg.Voxel.MaxVolume
	opts.Generator = gen
	opts.Mesher = mesh.NewSurfaceMesher(kind, cfg.Mesh.Material)
	opts.Publisher = bus
	opts.Metrics = detached.NewMetrics(nil)

	return detached.NewGroup(opts)
}
