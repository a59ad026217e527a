// cmd/cancercare-web/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cancercare-web/internal/common/aws"
	"cancercare-web/internal/common/config"
	"cancercare-web/internal/common/database"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/common/observability"
	"cancercare-web/internal/notify"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/upload"
	"cancercare-web/internal/web"
)

const (
	redisMaxRetries   = 5
	redisInitialDelay = 2 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Long: `Serve the pages, the JSON prediction endpoint, the upload proxy and
/metrics until SIGINT or SIGTERM, then drain in-flight requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting cancercare-web...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Tracing.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Progress store ---
	var rdb *database.RedisClient
	if cfg.Progress.Store == "redis" {
		rdb = database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, redisMaxRetries, redisInitialDelay, zapLog, "Redis connection")
		if err != nil {
			return err
		}
		zapLog.Info("Redis connected", zap.String("address", cfg.Database.Redis.Address))
	}

	store, err := upload.NewStore(cfg.Progress.Store, config.GetDuration(cfg.Progress.TTL), rdb)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}

	// --- Backends ---
	pcfg := prediction.NewConfig(cfg.Backend)
	images := prediction.NewImageClient(pcfg, log)

	h, err := web.NewHandler(cfg, web.Deps{
		Predictor:     prediction.NewRiskClient(pcfg, log),
		Classifier:    images,
		Relayer:       images,
		ProgressStore: store,
		Notifier:      notifier,
		Observability: obs,
	}, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       config.GetDuration(cfg.Server.ReadTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("HTTP server listening",
			zap.String("addr", srv.Addr),
			zap.String("riskBackend", pcfg.RiskURL),
			zap.String("imageBackend", pcfg.ImageURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("Server stopped with error", zap.Error(err))
		return err
	}
	zapLog.Info("Server stopped")
	return nil
}

// newNotifier builds SES and SNS clients only for the channels that are
// enabled. Disabled channels stay nil and are logged instead.
func newNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (*notify.Notifier, error) {
	var (
		email     notify.EmailSender
		publisher notify.Publisher
	)
	region := cfg.Notifications.AWS.Region

	if cfg.Notifications.Contact.Enabled {
		ses, err := aws.NewSESClient(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = ses
	}
	if cfg.Notifications.Appointments.Enabled {
		sns, err := aws.NewSNSClient(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		publisher = sns
	}

	return notify.New(cfg.Notifications, email, publisher, log), nil
}
