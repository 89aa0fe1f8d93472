package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/infermesh/infermesh"
	"github.com/infermesh/infermesh/config"
	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/logging"
	"github.com/infermesh/infermesh/runner/anthropic"
	"github.com/infermesh/infermesh/runner/openai"
	"github.com/infermesh/infermesh/server"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		configPath  string
		logLevel    string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the inference dispatch API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "config file path",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug|info|warn|error)",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = cfg.ServerAddress
			}
			if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
				logLevel = cfg.LogLevel
			}

			log := buildLogger(cfg.LogFormat, logLevel)

			mesh, err := buildMesh(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := mesh.Cleanup(cleanupCtx); err != nil {
					log.Warn("cleanup reported failures", "error", err)
				}
			}()

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.New(mesh, log).Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func buildLogger(format, level string) logging.Logger {
	lvl := logging.LogLevelInfo
	switch level {
	case "debug":
		lvl = logging.LogLevelDebug
	case "warn":
		lvl = logging.LogLevelWarn
	case "error":
		lvl = logging.LogLevelError
	}
	if format == "text" {
		return logging.NewTextLogger(os.Stderr, lvl)
	}
	return logging.NewJSONLogger(os.Stdout, lvl)
}

// buildMesh wires the built-in runner registrations and host configuration.
func buildMesh(cfg config.Config, log logging.Logger) (*infermesh.Mesh, error) {
	mesh := infermesh.New(func(o *infermesh.Options) {
		o.Logger = log
		o.DefaultRunners = cfg.DefaultTable()
		o.RunnerSettings = cfg.Settings()
	})

	if err := mesh.RegisterRunner(openai.Registration(10)); err != nil {
		return nil, err
	}
	if err := mesh.RegisterRunner(anthropic.Registration(5)); err != nil {
		return nil, err
	}

	// With no configured table, text generation defaults to the highest
	// priority candidate anyway; setting it explicitly keeps selection
	// independent of registration order.
	if len(cfg.DefaultRunners) == 0 {
		mesh.SetDefaultRunners(map[core.Capability]string{
			core.CapabilityTextGeneration: openai.Name,
			core.CapabilityContentSafety:  anthropic.Name,
		})
	}

	return mesh, nil
}
