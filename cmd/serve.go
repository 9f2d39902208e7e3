package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	logmemory "github.com/bnema/odfops/internal/adapters/oplog/memory"
	logsqlite "github.com/bnema/odfops/internal/adapters/oplog/sqlite"
	"github.com/bnema/odfops/internal/adapters/transport/httpapi"
	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var (
		listen string
		opLog  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = app.config.GetString(keyServerListen)
			}
			if opLog == "" {
				opLog = app.config.GetString(keyServerOpLog)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.serve(ctx, listen, opLog)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from "+keyServerListen+")")
	cmd.Flags().StringVar(&opLog, "oplog", "", "sqlite op log path, or \"memory\" (default from "+keyServerOpLog+")")

	return cmd
}

func (a *app) serve(ctx context.Context, listen, opLogPath string) (err error) {
	auth, err := a.authService(ctx)
	if err != nil {
		return err
	}

	opLog, closeLog, err := openOpLog(ctx, opLogPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeLog())
	}()

	sequencer := application.NewSequencer(opLog,
		func() ops.Document { return docmemory.New() },
		application.WithSequencerLogger(a.logger),
	)
	host := httpapi.New(sequencer, auth, httpapi.WithLogger(a.logger))

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}

	server := &http.Server{
		Handler:           host.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("session host listening", "addr", listener.Addr().String(), "oplog", opLogPath)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.logger.Info("session host shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openOpLog(ctx context.Context, path string) (ports.OperationLog, func() error, error) {
	if path == memoryOpLog {
		return logmemory.New(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create op log directory: %w", err)
	}

	opLog, err := logsqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open op log: %w", err)
	}

	return opLog, opLog.Close, nil
}
