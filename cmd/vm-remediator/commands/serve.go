package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/leonardo-meireles/vm-remediator/internal/server"
	"github.com/leonardo-meireles/vm-remediator/internal/telemetry"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the remediation webhook",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("secret", "", "Shared secret expected from the probe (prefer REMEDIATOR_SECRET)")
	serveCmd.Flags().Float64("rate-limit", 0, "Webhook requests per second (0 disables)")
	serveCmd.Flags().Int("rate-burst", 5, "Webhook burst size")

	viper.BindPFlag("listen-addr", serveCmd.Flags().Lookup("listen-addr"))
	viper.BindPFlag("secret", serveCmd.Flags().Lookup("secret"))
	viper.BindPFlag("rate-limit", serveCmd.Flags().Lookup("rate-limit"))
	viper.BindPFlag("rate-burst", serveCmd.Flags().Lookup("rate-burst"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{Exporter: cfg.TraceExporter, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		return errors.Wrap(err, "telemetry init failed")
	}
	defer shutdownTracing(context.Background())

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	st, err := buildStack(ctx, cfg, false, m)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(security.NewValidator(cfg.Secret), st.remediator, m, server.Options{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
	return srv.Run(ctx, cfg.ListenAddr)
}
