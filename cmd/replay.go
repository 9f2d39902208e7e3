package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	staterender "github.com/bnema/odfops/internal/adapters/render/state"
	"github.com/bnema/odfops/internal/adapters/router/local"
	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
)

func newReplayCmd(app *app) *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Play a JSON-lines operation log through a local session and show the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			operations, err := readOperations(cmd, file, ops.NewFactory())
			if err != nil {
				return err
			}

			snapshot, err := app.replay(cmd.Context(), operations)
			if err != nil {
				return err
			}
			if file != "-" {
				snapshot.SessionID = domain.SessionID(filepath.Base(file))
			}

			return app.writeSnapshot(cmd, snapshot, asJSON)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "operations file, one JSON operation per line (\"-\" for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resulting state as JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// replay runs operations through a single-user session. Guard rejections
// are counted, not fatal.
func (a *app) replay(ctx context.Context, operations []ops.Operation) (snapshot staterender.Snapshot, err error) {
	notifier := application.NewNotifier()
	doc := docmemory.New(docmemory.WithEmitter(notifier))
	session := application.NewSession(doc, local.New(local.WithLogger(a.logger)), notifier,
		application.WithSessionLogger(a.logger),
	)
	defer func() {
		err = errors.Join(err, session.Close(ctx))
	}()

	applied := 0
	unsubscribe := session.Subscribe(func(event domain.Event) {
		if event.Kind == domain.EventOperationExecuted {
			applied++
		}
	})
	defer unsubscribe()

	if err := session.Enqueue(operations...); err != nil {
		return staterender.Snapshot{}, fmt.Errorf("replay operations: %w", err)
	}
	a.logger.Info("replayed operations", "applied", applied, "rejected", len(operations)-applied)

	digest, err := doc.Digest()
	if err != nil {
		return staterender.Snapshot{}, fmt.Errorf("digest document: %w", err)
	}

	return staterender.Snapshot{
		Head:   int64(len(operations)),
		Digest: digest,
		State:  doc.Snapshot(),
	}, nil
}
