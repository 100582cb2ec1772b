package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/api"
	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/config"
	"github.com/marmos91/cdapd/pkg/metrics"
	promimpl "github.com/marmos91/cdapd/pkg/metrics/prometheus"
	"github.com/marmos91/cdapd/pkg/rib"
	"github.com/marmos91/cdapd/pkg/transport/tcp"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cdapd daemon",
	Long: `Start the cdapd daemon with the specified configuration.

The daemon serves one RIB over framed TCP flows, the control-plane API and
the Prometheus metrics endpoint, each when enabled in the configuration; all
three are disabled by default.

Examples:
  # Start with the default configuration
  cdapd start

  # Start with a custom config file
  cdapd start --config /etc/cdapd/config.yaml

  # Override a key the config file sets from the environment
  CDAPD_LOGGING_LEVEL=DEBUG cdapd start --config /etc/cdapd/config.yaml`,
	RunE: runStart,
}

// acceptAllConnHandler is the daemon's default connection policy: accept
// every connect and acknowledge every release. Enrollment policy belongs to
// the embedding application; a standalone cdapd has none.
type acceptAllConnHandler struct {
	provider **cdap.Provider
}

func (h *acceptAllConnHandler) Connect(invokeID int32, con cdap.ConnHandle) {
	logger.Info("peer connected",
		logger.KeyPortID, con.PortID,
		logger.KeyAPName, con.Dest.APName,
		logger.KeyVersion, con.Version)
	if err := (*h.provider).SendOpenConnectionResult(con.PortID, cdap.ResInfo{}, invokeID); err != nil {
		logger.Error("unable to answer connect",
			logger.KeyPortID, con.PortID, logger.KeyError, err.Error())
	}
}

func (h *acceptAllConnHandler) ConnectResult(res cdap.ResInfo, con cdap.ConnHandle) {
	logger.Info("connect answered",
		logger.KeyPortID, con.PortID, logger.KeyResult, res.Code)
}

func (h *acceptAllConnHandler) Release(invokeID int32, con cdap.ConnHandle) {
	logger.Info("peer released", logger.KeyPortID, con.PortID)
	if invokeID == 0 {
		return
	}
	if err := (*h.provider).SendReleaseConnectionResult(con.PortID, cdap.ResInfo{}, invokeID); err != nil {
		logger.Error("unable to answer release",
			logger.KeyPortID, con.PortID, logger.KeyError, err.Error())
	}
}

func (h *acceptAllConnHandler) ReleaseResult(res cdap.ResInfo, con cdap.ConnHandle) {
	logger.Info("release answered",
		logger.KeyPortID, con.PortID, logger.KeyResult, res.Code)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	instanceID := uuid.NewString()
	logger.Info("cdapd starting", logger.KeyInstance, instanceID, "version", Version)

	var cdapMetrics metrics.CDAPMetrics
	var ribMetrics metrics.RIBMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		cdapMetrics = promimpl.NewCDAPMetrics()
		ribMetrics = promimpl.NewRIBMetrics()
	}

	// Assemble the core: manager -> daemon -> transport -> I/O handler ->
	// provider, then close the loop.
	mgr := cdap.NewSessionManager(cdap.SessionManagerConfig{
		Timeout:        cfg.CDAP.ConnectTimeout,
		MaxMessageSize: cfg.CDAP.MaxMessageSize,
	})

	var provider *cdap.Provider
	daemon := rib.NewDaemon(&acceptAllConnHandler{provider: &provider})
	daemon.SetRIBMetrics(ribMetrics)
	mgr.SetAbortHandler(daemon.SessionAborted)

	transport := tcp.New()

	ioOpts := []cdap.IOHandlerOption{cdap.WithMetrics(cdapMetrics)}
	if cfg.CDAP.SDUProtection.Mode == "aead" {
		key, err := cfg.CDAP.SDUProtection.AEADKey()
		if err != nil {
			return err
		}
		sdu, err := cdap.NewAEADProtection(key)
		if err != nil {
			return err
		}
		ioOpts = append(ioOpts, cdap.WithSDUProtection(sdu))
	}

	io := cdap.NewIOHandler(mgr, transport, cdap.Handlers{
		AppConn:   daemon,
		Requests:  daemon,
		Responses: daemon,
	}, ioOpts...)
	transport.SetIOHandler(io)

	provider = cdap.NewProvider(mgr, io)
	daemon.SetProvider(provider)

	// One schema + one RIB bound to the configured AE.
	if _, err := daemon.CreateSchema(cfg.Listener.Version); err != nil {
		return err
	}
	r, err := daemon.CreateRIB(cfg.Listener.Version, nil)
	if err != nil {
		return err
	}
	if err := daemon.AssociateRIBToAE(r, cfg.Listener.AEName); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Listener.Enabled {
		g.Go(func() error {
			return transport.Serve(ctx, cfg.Listener.Address)
		})
	}

	if cfg.ControlPlane.Enabled {
		apiServer := api.NewServer(cfg.ControlPlane, mgr, daemon, instanceID)
		g.Go(func() error {
			return apiServer.Start(ctx)
		})
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Port)
		})
	}

	err = g.Wait()
	transport.Close()
	logger.Info("cdapd stopped", logger.KeyInstance, instanceID)
	return err
}

// serveMetrics exposes the Prometheus registry until the context is
// cancelled.
func serveMetrics(ctx context.Context, port int) error {
	handler := metrics.Handler()
	if handler == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("metrics endpoint: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
