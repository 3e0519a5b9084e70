package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/annel0/meadow-world/internal/api"
	"github.com/annel0/meadow-world/internal/auth"
	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/config"
	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/layers"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/observability"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/occupants"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}

	if cfg.Logging.File {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))

	logging.Info("🌱 Запуск Meadow World Server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// === КАТАЛОГ ===
	cat := catalog.New()
	if err := cat.LoadDir(cfg.World.CatalogDir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("каталог %s: %w", cfg.World.CatalogDir, err)
		}
		logging.Warn("Каталог %s не найден, миры загружаться не будут", cfg.World.CatalogDir)
	}
	logging.Info("📚 Каталог: %d предметов, %d миров", len(cat.ItemIDs()), len(cat.WorldIDs()))

	// === ХРАНИЛИЩА ===
	store, err := openSaveStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	observers, err := openObserverRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer observers.Close()

	// === ШИНА СОБЫТИЙ ===
	bus, closeBus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("логирование шины: %w", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, nil)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	defer exporter.Stop()

	// === МЕНЕДЖЕР МИРОВ ===
	behaviors := world.NewBehaviorRegistry()
	occupants.Register(behaviors)

	manager := layers.NewManager(layers.Config{
		LayerOffset:      cfg.World.LayerOffset,
		AutosaveInterval: cfg.World.AutosaveInterval(),
		LocalPlayer:      cfg.World.LocalPlayer,
		Metrics:          layers.NewMetrics(nil),
		Observers:        observers,
	}, world.Services{
		Catalog:    cat,
		Entities:   entity.NewEntityManager(),
		Behaviors:  behaviors,
		Replicator: replication.NewBusReplicator(bus, "replication"),
		Store:      store,
		Bus:        bus,
		Authority:  world.StaticAuthority(cfg.World.IsAuthoritative()),
		Profile:    cfg.World.Profile,
	})

	if cfg.World.StartWorld != "" && cfg.World.IsAuthoritative() {
		if err := enterStartWorld(ctx, cfg, manager); err != nil {
			return err
		}
	}

	if cfg.World.AutosaveInterval() > 0 {
		logging.GetLayersLogger().Info("💾 Автосохранение каждые %s", cfg.World.AutosaveInterval())
		go func() {
			if err := manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("Автосохранение остановлено: %v", err)
			}
		}()
	}

	// === КОНСОЛЬ ===
	var console *api.Console
	if cfg.Console.Enabled {
		if cfg.Console.Telemetry {
			shutdown, err := observability.InitTelemetry(ctx, observability.Options{
				ServiceName: cfg.Console.ServiceName,
				Profile:     cfg.World.Profile,
				Endpoint:    cfg.Console.OTLP.Endpoint,
				Insecure:    cfg.Console.OTLP.Insecure,
				SampleRatio: cfg.Console.OTLP.SampleRatio,
			})
			if err != nil {
				logging.Warn("OpenTelemetry недоступен: %v", err)
			} else {
				defer shutdown(context.Background())
			}
		}

		console, err = startConsole(ctx, cfg, manager, bus)
		if err != nil {
			return err
		}
	}

	logging.Info("✅ Сервер готов (слоёв: %d, активный: %d)", len(manager.Layers()), manager.ActiveLayer())

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, останавливаемся...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if console != nil {
		if err := console.Stop(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки консоли: %v", err)
		}
	}
	if cfg.World.IsAuthoritative() {
		if err := manager.SaveAll(shutdownCtx); err != nil && !errors.Is(err, world.ErrNoStore) {
			logging.Error("❌ Финальное сохранение: %v", err)
		}
	}
	return nil
}

func openSaveStore(ctx context.Context, cfg *config.Config) (storage.SaveStore, error) {
	dataDir := cfg.Storage.GetDataDir()
	slog := logging.GetStorageLogger()

	switch cfg.Storage.Backend {
	case "badger":
		slog.Info("Сохранения в badger: %s", dataDir)
		return storage.NewBadgerStore(dataDir)
	case "sqlite":
		path := filepath.Join(dataDir, "saves.db")
		slog.Info("Сохранения в SQLite: %s", path)
		return storage.NewSQLiteStore(path)
	case "redis":
		slog.Info("Сохранения в redis: %s", cfg.Storage.Redis.Addr)
		return storage.NewRedisStore(ctx, redisConfig(cfg))
	default:
		path := filepath.Join(dataDir, "saves")
		slog.Info("Сохранения в файлах: %s", path)
		return storage.NewFileStore(path)
	}
}

func openObserverRepo(ctx context.Context, cfg *config.Config) (storage.ObserverRepo, error) {
	oc := cfg.Storage.Observers
	switch oc.Backend {
	case "redis":
		return storage.NewRedisObserverRepo(ctx, redisConfig(cfg), time.Duration(oc.TTLMinutes)*time.Minute)
	case "mariadb":
		return storage.NewMariaObserverRepo(ctx, oc.DSN)
	case "postgres":
		return storage.NewPostgresObserverRepo(ctx, oc.DSN)
	default:
		return storage.NewMemoryObserverRepo(), nil
	}
}

func redisConfig(cfg *config.Config) *storage.RedisConfig {
	rc := cfg.Storage.Redis
	return &storage.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, KeyPrefix: rc.KeyPrefix}
}

func openBus(cfg *config.Config) (eventbus.EventBus, func(), error) {
	if cfg.EventBus.URL == "" {
		return eventbus.NewMemoryBus(cfg.EventBus.Buffer), func() {}, nil
	}

	retention := time.Duration(cfg.EventBus.Retention) * time.Hour
	jb, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
	if err != nil {
		return nil, nil, err
	}
	logging.Info("📨 JetStream: %s (stream=%s)", cfg.EventBus.URL, cfg.EventBus.Stream)
	return jb, func() { _ = jb.Close() }, nil
}

func enterStartWorld(ctx context.Context, cfg *config.Config, manager *layers.Manager) error {
	if cfg.World.StartEntrance == "" {
		_, err := manager.LoadWorld(ctx, cfg.World.StartWorld)
		return err
	}
	move, err := manager.ResumeObserver(ctx, cfg.World.LocalPlayer, cfg.World.StartWorld, cfg.World.StartEntrance)
	if err != nil {
		return fmt.Errorf("стартовый мир %s: %w", cfg.World.StartWorld, err)
	}
	logging.Info("🚪 %s входит через %s (слой %d)", move.PlayerID, move.Entrance, move.Layer)
	return nil
}

func startConsole(ctx context.Context, cfg *config.Config, manager *layers.Manager, bus eventbus.EventBus) (*api.Console, error) {
	clog := logging.GetConsoleLogger()

	if cfg.Console.JWTSecret != "" {
		if err := auth.SetJWTSecret(cfg.Console.JWTSecret); err != nil {
			return nil, fmt.Errorf("console.jwt_secret: %w", err)
		}
	} else {
		clog.Warn("console.jwt_secret не задан, токены не переживут перезапуск")
	}

	var operators auth.OperatorRepository = auth.NewMemoryOperatorRepo()
	if cfg.Console.MongoURI != "" {
		repo, err := auth.NewMongoOperatorRepo(ctx, auth.MongoConfig{URI: cfg.Console.MongoURI})
		if err != nil {
			return nil, fmt.Errorf("операторы MongoDB: %w", err)
		}
		go func() {
			<-ctx.Done()
			_ = repo.Close()
		}()
		operators = repo
	}

	seeds := make([]auth.Seed, 0, len(cfg.Console.Operators))
	for _, op := range cfg.Console.Operators {
		seeds = append(seeds, auth.Seed{Username: op.Username, PasswordHash: op.PasswordHash, Authoritative: op.Authoritative})
	}
	if err := auth.SeedRepository(operators, seeds); err != nil {
		return nil, fmt.Errorf("операторы консоли: %w", err)
	}

	console := api.NewConsole(api.Config{
		Port:        fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Manager:     manager,
		Operators:   operators,
		Bus:         bus,
		ServiceName: cfg.Console.ServiceName,
	})
	go func() {
		if err := console.Start(); err != nil {
			clog.Error("❌ Консоль остановлена: %v", err)
		}
	}()
	clog.Info("🌐 Консоль: http://localhost:%d (health: /health)", cfg.Server.GetRESTPort())
	return console, nil
}
