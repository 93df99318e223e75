// Package main is the entry point for the coderun execution server.
//
// The coderun server accepts single-file programs in C, C++, Java, Python and
// JavaScript, screens them with a pattern-based risk filter, compiles them if
// needed and runs them under per-stage wall-clock limits in a throwaway
// workspace. Results are served over a REST API or as a Model Context Protocol
// tool on stdio or streamable HTTP, selected by server.transport.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/engine"
	"github.com/isdmx/coderun/httpapi"
	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/logger"
	"github.com/isdmx/coderun/mcpserver"
	"github.com/isdmx/coderun/metrics"
	"github.com/isdmx/coderun/riskfilter"
	"github.com/isdmx/coderun/sandbox"
	"github.com/isdmx/coderun/workspace"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Metrics collector with its own registry
			metrics.NewFromConfig,

			// Execution pipeline
			riskfilter.NewFromConfig,
			fx.Annotate(
				newRegistry,
				fx.As(fx.Self()),
				fx.As(new(httpapi.LanguageLister)),
				fx.As(new(mcpserver.LanguageNamer)),
			),
			workspace.NewManagerFromConfig,
			sandbox.NewRunner,
			fx.Annotate(engine.New, fx.As(new(engine.Executor))),

			// Transports
			mcpserver.New,
			httpapi.New,
		),

		fx.Invoke(logToolchains),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, server *mcpserver.MCPServer, rest *httpapi.Server) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				case "rest":
					lc.Append(fx.Hook{
						OnStart: rest.Start,
						OnStop:  rest.Stop,
					})
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newRegistry(cfg *config.Config) (*language.Registry, error) {
	return language.NewRegistry(cfg)
}

// logToolchains reports missing toolchains at startup. Requests for those
// languages fail with an internal error until the tool is installed.
func logToolchains(lc fx.Lifecycle, log *zap.Logger, registry *language.Registry) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, entry := range registry.Availability() {
				if entry.Available {
					log.Info("toolchain available", zap.String("language", entry.Language))
					continue
				}
				log.Warn("toolchain missing",
					zap.String("language", entry.Language),
					zap.String("program", entry.Missing))
			}
			return nil
		},
	})
}
