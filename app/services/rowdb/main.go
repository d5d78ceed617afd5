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

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/todochain/app/services/rowdb/handlers"
	"github.com/ardanlabs/todochain/foundation/events"
	"github.com/ardanlabs/todochain/foundation/logger"
	"github.com/ardanlabs/todochain/foundation/nameservice"
	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/ardanlabs/todochain/foundation/rowdb/storage/disk"
	"github.com/ardanlabs/todochain/foundation/rowdb/storage/memory"
	"github.com/ardanlabs/todochain/foundation/rowdb/storage/sqlite"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

type config struct {
	conf.Version
	Web struct {
		ReadTimeout     time.Duration `conf:"default:5s"`
		WriteTimeout    time.Duration `conf:"default:10s"`
		IdleTimeout     time.Duration `conf:"default:120s"`
		ShutdownTimeout time.Duration `conf:"default:20s"`
		DebugHost       string        `conf:"default:0.0.0.0:7080"`
		PublicHost      string        `conf:"default:0.0.0.0:8080"`
		CorsOrigin      string        `conf:"default:*,help:comma separated origins allowed to call the node"`
	}
	DB struct {
		Storage     string `conf:"default:disk,help:disk, sqlite or memory"`
		Path        string `conf:"default:zblock/rows"`
		GenesisPath string `conf:"default:zblock/genesis.json"`
		Reset       bool   `conf:"default:false"`
	}
	NameService struct {
		Folder string `conf:"default:zblock/accounts/"`
	}
	Log struct {
		Path       string `conf:"help:file to tee logs into, stdout only when empty"`
		MaxSizeMB  int    `conf:"default:100"`
		MaxBackups int    `conf:"default:3"`
		MaxAgeDays int    `conf:"default:28"`
	}
}

func main() {
	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "rowdb ledger node for the todo client",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "ROWDB"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return
		}
		fmt.Println("parsing config:", err)
		os.Exit(1)
	}

	// Construct the application logger.
	log, err := logger.NewWithRotation("ROWDB", logger.Rotation{
		Path:       cfg.Log.Path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log, cfg); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger, cfg config) error {

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the key file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Ledger Support

	genesis, err := rowdb.LoadGenesis(cfg.DB.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	serializer, err := newSerializer(cfg.DB.Storage, cfg.DB.Path)
	if err != nil {
		return err
	}

	// Storage is cleared before the replay so a corrupt chain can be dropped.
	if cfg.DB.Reset {
		log.Infow("startup", "status", "resetting ledger storage", "path", cfg.DB.Path)
		if err := serializer.Reset(); err != nil {
			return fmt.Errorf("resetting storage: %w", err)
		}
	}

	// The ledger packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	db, err := rowdb.New(genesis, serializer, ev)
	if err != nil {
		serializer.Close()
		return fmt.Errorf("loading ledger: %w", err)
	}
	defer db.Close()

	log.Infow("startup", "status", "ledger ready", "chain", genesis.ChainID, "block", db.LatestBlock().Header.Number, "relay", db.RelayBalance())

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, db)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		DB:         db,
		NS:         ns,
		Evts:       evts,
		CorsOrigin: cfg.Web.CorsOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// newSerializer constructs the block storage named by the configuration.
func newSerializer(storage string, path string) (rowdb.Serializer, error) {
	switch storage {
	case "disk":
		return disk.New(path)
	case "sqlite":
		return sqlite.New(path)
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage %q, use disk, sqlite or memory", storage)
}
