package server

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the service. The application must supply *Config and
// *zap.Logger.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDatabase,
			NewUserStore,
			NewRedis,
			NewMailer,
			NewEngine,
			NewHTTPServer,
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lifecycle fx.Lifecycle, srv *HTTPServer) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
