package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oneconcern/dagsync/pkg/core"
	"github.com/oneconcern/dagsync/pkg/httpd"
	"github.com/oneconcern/dagsync/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local repository to remote peers",
	Long: `Serve the local repository over http, so that remote peers may push to it, pull from it or clone it.

Prometheus metrics are exposed on /metrics. The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := logger()
		if err != nil {
			return err
		}
		r, err := openRepo(l)
		if err != nil {
			return err
		}

		reg := metrics.NewRegistry()
		m := core.NewMetrics()
		if err := metrics.Register(reg, m.Collectors()...); err != nil {
			_ = r.Close()
			return err
		}

		responder := core.NewResponder(r, core.ResponderLogger(l), core.ResponderMetrics(m))
		server := httpd.New(
			httpd.Listen(viper.GetString(keyListen)),
			httpd.HandlesRequestsWith(httpd.NewRouter(responder, httpd.RouterLogger(l), httpd.WithRegistry(reg))),
			httpd.LogsWith(l),
			httpd.OnShutdown(func() {
				if err := r.Close(); err != nil {
					l.Warn("closing repository", zap.Error(err))
				}
			}),
		)
		if err := server.Listen(); err != nil {
			_ = r.Close()
			return err
		}

		ctx, stop := signal.NotifyContext(parentContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		desc := r.Descriptor()
		l.Info("serving repository", zap.String("name", desc.Name), zap.String("repoID", desc.RepoID), zap.String("addr", server.Addr()))
		return server.Serve(ctx)
	},
}

func parentContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	addListenFlag(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
