package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/godilite/score-stats/internal/config"
	handler "github.com/godilite/score-stats/internal/grpc"
	"github.com/godilite/score-stats/internal/repository"
	"github.com/godilite/score-stats/internal/service"
	"github.com/godilite/score-stats/pkg/cache"
	dbbuilder "github.com/godilite/score-stats/pkg/database"
	grpcsrv "github.com/godilite/score-stats/pkg/grpc/server"
	"github.com/godilite/score-stats/pkg/llm"
	"github.com/godilite/score-stats/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	logger        *zap.Logger
	dbPool        *sql.DB
	cache         *cache.Cache
	workflow      *service.Workflow
	grpcServer    *grpcsrv.Server
	metricsServer *metrics.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	collector := metrics.NewCollector()

	seed, err := loadSeed(cfg)
	if err != nil {
		return nil, fmt.Errorf("seed init failed: %w", err)
	}
	logger.Info("Seed dataset ready", zap.Int("submissions", seed.TotalSubmissions), zap.String("file", cfg.SeedFile))

	persistence, err := a.newPersistence(ctx, cfg, seed)
	if err != nil {
		a.close()
		return nil, err
	}

	analysis, err := a.newAnalysis(ctx, cfg, collector)
	if err != nil {
		a.close()
		return nil, err
	}

	a.workflow = service.NewWorkflow(persistence, analysis, seed, logger,
		service.WithGatewayTimeout(cfg.GatewayTimeout),
		service.WithWorkflowMetrics(collector),
		service.WithSessionLimits(cfg.MaxSessions, cfg.SessionTTL),
	)
	a.workflow.Bootstrap(ctx)

	grpcHandlers := handler.NewGRPCHandlers(a.workflow, logger, cfg.GatewayTimeout+cfg.AnalysisTimeout)

	a.grpcServer, err = grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithRecovery(true),
		grpcsrv.WithLogging(true),
		grpcsrv.WithUnaryInterceptors(collector.UnaryServerInterceptor()),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	a.grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterScoreStatsServer(s, grpcHandlers)
	})

	if cfg.MetricsPort > 0 {
		a.metricsServer, err = metrics.NewServer(collector, cfg.MetricsPort, logger)
		if err != nil {
			_ = a.grpcServer.Shutdown(ctx)
			a.close()
			return nil, err
		}
	}

	return a, nil
}

func loadSeed(cfg *config.Config) (service.Dataset, error) {
	if cfg.SeedFile != "" {
		return service.LoadSeedFile(cfg.SeedFile)
	}
	seedCfg := service.DefaultSeedConfig()
	seedCfg.Count = cfg.SeedCount
	seedCfg.Seed = cfg.SeedRandom
	return service.GenerateSeed(seedCfg), nil
}

func (a *App) newPersistence(ctx context.Context, cfg *config.Config, seed service.Dataset) (service.PersistenceGateway, error) {
	switch {
	case cfg.PersistenceBackend == config.BackendSQLite:
		dbPool, err := dbbuilder.New(
			dbbuilder.WithDriver(cfg.DBDriver),
			dbbuilder.WithDataSource(dbbuilder.SQLiteFileDSN(cfg.DBPath)),
		)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		a.dbPool = dbPool
		a.logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

		repo := repository.NewSubmissionRepository(dbPool, repository.WithBaseline(seed))
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case cfg.DemoMode():
		a.logger.Warn("SHEET_URL not set, running in demo mode; submissions are not stored")
		return repository.NewDemoGateway(seed), nil

	default:
		a.logger.Info("Sheet gateway configured", zap.Duration("timeout", cfg.GatewayTimeout))
		return repository.NewSheetGateway(cfg.SheetURL, cfg.GatewayTimeout), nil
	}
}

func (a *App) newAnalysis(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*service.AnalysisService, error) {
	opts := []service.AnalysisOption{
		service.WithAnalysisTimeout(cfg.AnalysisTimeout),
		service.WithAnalysisMetrics(collector),
		service.WithAnalysisLanguage(cfg.AnalysisLanguage),
	}

	if cfg.RedisAddr != "" {
		cacheClient, err := cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPrefix("score-stats:"),
		)
		if err != nil {
			a.logger.Warn("Cache unavailable, analysis results will not be cached", zap.Error(err))
		} else {
			a.cache = cacheClient
			opts = append(opts, service.WithAnalysisCache(cacheClient, cfg.AnalysisCacheTTL))
			a.logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.APIKey == "" {
		a.logger.Warn("API_KEY not set, analysis will return the missing key placeholder")
		return service.NewAnalysisService(nil, a.logger, opts...), nil
	}

	core, err := llm.NewProvider(cfg.AnalysisProvider, llm.ClientConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.AnalysisModel,
		Timeout: cfg.AnalysisTimeout,
		Middleware: []llm.Middleware{
			llm.RateLimitMiddleware(rate.Limit(cfg.AnalysisRateLimit), cfg.AnalysisRateBurst),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis provider init failed: %w", err)
	}
	a.logger.Info("Analysis provider initialized",
		zap.String("provider", cfg.AnalysisProvider),
		zap.String("model", core.GetModel()),
		zap.String("language", cfg.AnalysisLanguage.String()))

	gateway := repository.NewLLMAnalysisGateway(core, cfg.AnalysisLanguage)
	return service.NewAnalysisService(gateway, a.logger, opts...), nil
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts the servers and blocks until ctx is done, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info("application starting")

	a.grpcServer.Start()
	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	<-ctx.Done()
	a.logger.Info("application shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.grpcServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}

	a.workflow.Wait()
	a.close()

	if shutdownCtx.Err() == context.DeadlineExceeded {
		a.logger.Warn("shutdown completed but deadline exceeded")
	} else {
		a.logger.Info("graceful shutdown completed successfully")
	}

	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// GRPCAddr returns the gRPC listen address.
func (a *App) GRPCAddr() string {
	return a.grpcServer.Addr().String()
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if a.dbPool != nil {
		if err := a.dbPool.Close(); err != nil {
			a.logger.Error("database shutdown error", zap.Error(err))
		}
	}
}
