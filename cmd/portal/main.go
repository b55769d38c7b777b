package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backendadapter "github.com/himanshu07rautela/CVD-Gradient/internal/adapters/backend"
	"github.com/himanshu07rautela/CVD-Gradient/internal/adapters/backend/demo"
	sqliteadapter "github.com/himanshu07rautela/CVD-Gradient/internal/adapters/db/sqlite"
	httpadapter "github.com/himanshu07rautela/CVD-Gradient/internal/adapters/http"
	rpcadapter "github.com/himanshu07rautela/CVD-Gradient/internal/adapters/rpcjson"
	"github.com/himanshu07rautela/CVD-Gradient/internal/application"
	"github.com/himanshu07rautela/CVD-Gradient/internal/config"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "cvd-portal",
		Usage: "Cardiovascular risk portal server and operator CLI",
		Commands: []*cli.Command{
			serverCommand(),
			configCommand(),
			healthCommand(),
			sessionsCommand(),
			auditCommand(),
			submissionsCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP portal and the operator socket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", Sources: cli.EnvVars("PORTAL_CONFIG")},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address", Sources: cli.EnvVars("PORTAL_ADDR")},
			&cli.StringFlag{Name: "db-path", Usage: "SQLite database path", Sources: cli.EnvVars("PORTAL_DB_PATH")},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path", Sources: cli.EnvVars("PORTAL_RPC_SOCKET")},
			&cli.StringFlag{Name: "backend", Usage: "demo or http", Sources: cli.EnvVars("PORTAL_BACKEND")},
			&cli.StringFlag{Name: "backend-url", Usage: "inference service base URL", Sources: cli.EnvVars("PORTAL_BACKEND_URL")},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Sources: cli.EnvVars("PORTAL_LOG_LEVEL")},
			&cli.BoolFlag{Name: "cookie-secure", Usage: "mark the session cookie Secure", Sources: cli.EnvVars("PORTAL_COOKIE_SECURE")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			applyServerFlags(c, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg, logger)
		},
	}
}

func applyServerFlags(c *cli.Command, cfg *config.Config) {
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("db-path") {
		cfg.DBPath = c.String("db-path")
	}
	if c.IsSet("rpc-socket") {
		cfg.RPCSocket = c.String("rpc-socket")
	}
	if c.IsSet("backend") {
		cfg.Backend.Mode = c.String("backend")
	}
	if c.IsSet("backend-url") {
		cfg.Backend.URL = c.String("backend-url")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("cookie-secure") {
		cfg.HTTP.CookieSecure = c.Bool("cookie-secure")
	}
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}

func newBackend(cfg config.BackendConfig) (domain.Backend, error) {
	if cfg.Mode == config.BackendHTTP {
		return backendadapter.NewClient(cfg.URL, cfg.Timeout), nil
	}
	return demo.New()
}

func runServer(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	backend, err := newBackend(cfg.Backend)
	if err != nil {
		return err
	}
	service := application.NewPortalService(backend, sqliteadapter.NewActivityRepository(db), logger)
	sessions := session.NewRegistry(cfg.Session.TTL)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Session.SweepInterval)

	demoMode := cfg.Backend.Mode == config.BackendDemo
	router := httpadapter.NewRouter(service, sessions, logger, httpadapter.Options{
		CookieSecure:     cfg.HTTP.CookieSecure,
		DatastarScript:   cfg.HTTP.DatastarScript,
		DemoHint:         cfg.HTTP.DemoHint && demoMode,
		DemoPatientEmail: demo.DemoPatientEmail,
		DemoDoctorEmail:  demo.DemoDoctorEmail,
		DemoPassword:     demo.DemoPassword,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.RPCSocket, service, sessions, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSrv.Close()
	}()
	logger.WithField("socket", cfg.RPCSocket).Info("json-rpc listening")

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "backend": cfg.Backend.Mode}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration helpers",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default server config file",
				Flags: []cli.Flag{&cli.StringFlag{Name: "path", Value: "cvd-portal.yaml"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := config.Write(c.String("path")); err != nil {
						return err
					}
					fmt.Printf("wrote %s\n", c.String("path"))
					return nil
				},
			},
			{
				Name:  "cli",
				Usage: "Choose where operator commands connect",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("operator commands will use %s\n", cfg.Transport)
					return nil
				},
			},
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the server is up",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out map[string]any
			if err := doHealth(ctx, cfg, &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printHealth(out)
			return nil
		},
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Browser session commands",
		Commands: []*cli.Command{
			{
				Name:  "count",
				Usage: "Show how many browser sessions are live",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Count int `json:"count"`
					}
					if err := doSessionsCount(ctx, cfg, &out); err != nil {
						return err
					}
					fmt.Println(out.Count)
					return nil
				},
			},
			{
				Name:  "sweep",
				Usage: "Drop idle sessions now",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Removed int `json:"removed"`
						Count   int `json:"count"`
					}
					if err := doSessionsSweep(ctx, cfg, &out); err != nil {
						return err
					}
					printKV([][2]string{{"removed", fmt.Sprint(out.Removed)}, {"remaining", fmt.Sprint(out.Count)}})
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, c.Int("limit"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func submissionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "submissions",
		Usage: "Prediction submission commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List prediction submissions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "actor", Usage: "only submissions by this user identity"},
					&cli.IntFlag{Name: "limit", Value: 50},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Submission
					if err := doSubmissionsList(ctx, cfg, c.String("actor"), c.Int("limit"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSubmissions(out)
					return nil
				},
			},
		},
	}
}
