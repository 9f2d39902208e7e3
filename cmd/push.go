package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	docmemory "github.com/bnema/odfops/internal/adapters/document/memory"
	staterender "github.com/bnema/odfops/internal/adapters/render/state"
	"github.com/bnema/odfops/internal/adapters/router/fallback"
	"github.com/bnema/odfops/internal/adapters/router/live"
	"github.com/bnema/odfops/internal/adapters/router/local"
	"github.com/bnema/odfops/internal/adapters/router/pullbox"
	"github.com/bnema/odfops/internal/adapters/server/httpclient"
	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ops"
	"github.com/bnema/odfops/internal/ports"
)

const (
	transportLive    = "live"
	transportPullbox = "pullbox"
)

var errUnknownTransport = errors.New("unknown transport")

func newPushCmd(app *app) *cobra.Command {
	var (
		host      hostFlags
		sessionID string
		file      string
		transport string
		timeout   time.Duration
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Join a session, push a JSON-lines operation log as the joined member, and leave",
		Long:  "push joins the session on the host, rewrites every operation of the file to the joined member and routes them through the host. When the host is lost the operations are applied locally and the local state is shown instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if transport != transportLive && transport != transportPullbox {
				return fmt.Errorf("%w: %q", errUnknownTransport, transport)
			}

			factory := ops.NewFactory()
			operations, err := readOperations(cmd, file, factory)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, login, err := app.connectHost(ctx, host)
			if err != nil {
				return err
			}

			var snapshot staterender.Snapshot
			err = app.withProgress(ctx, "Pushing operations...", func(ctx context.Context) error {
				var err error
				snapshot, err = app.push(ctx, client, login.UserID, domain.SessionID(sessionID), transport, factory, operations)
				return err
			})
			if err != nil {
				return err
			}

			return app.writeSnapshot(cmd, snapshot, asJSON)
		},
	}

	host.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&file, "file", "", "operations file, one JSON operation per line (\"-\" for stdin)")
	cmd.Flags().StringVar(&transport, "transport", transportLive, "operation transport: live or pullbox")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the resulting state as JSON")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (a *app) push(
	ctx context.Context,
	client *httpclient.Client,
	userID domain.UserID,
	sessionID domain.SessionID,
	transport string,
	factory *ops.Factory,
	operations []ops.Operation,
) (staterender.Snapshot, error) {
	joined, err := client.JoinSession(ctx, userID, sessionID)
	if err != nil {
		return staterender.Snapshot{}, err
	}

	owned := make([]ops.Operation, 0, len(operations))
	for _, op := range operations {
		mine, err := factory.Reattribute(op, joined.MemberID)
		if err != nil {
			return staterender.Snapshot{}, err
		}
		owned = append(owned, mine)
	}

	primary, err := a.hostRouter(client, transport, joined)
	if err != nil {
		return staterender.Snapshot{}, err
	}

	router := fallback.NewRouter(primary, local.New(local.WithLogger(a.logger)), fallback.WithLogger(a.logger))
	notifier := application.NewNotifier()
	doc := docmemory.New(docmemory.WithEmitter(notifier))
	session := application.NewSession(doc, router, notifier,
		application.WithSessionFactory(factory),
		application.WithSessionLogger(a.logger),
	)

	if err := awaitHead(ctx, primary, joined.HeadSeq); err != nil {
		return staterender.Snapshot{}, errors.Join(fmt.Errorf("catch up with session: %w", err), session.Close(ctx))
	}
	if err := session.Enqueue(owned...); err != nil {
		return staterender.Snapshot{}, errors.Join(fmt.Errorf("enqueue operations: %w", err), session.Close(ctx))
	}
	if err := session.Close(ctx); err != nil {
		return staterender.Snapshot{}, err
	}

	if router.Switched() {
		a.logger.Warn("session host lost, showing the local state", "session", sessionID)
		digest, err := doc.Digest()
		if err != nil {
			return staterender.Snapshot{}, fmt.Errorf("digest document: %w", err)
		}
		return staterender.Snapshot{SessionID: sessionID, Digest: digest, State: doc.Snapshot()}, nil
	}

	if err := client.LeaveSession(ctx, sessionID, joined.MemberID); err != nil {
		return staterender.Snapshot{}, err
	}

	state, err := client.State(ctx, sessionID)
	if err != nil {
		return staterender.Snapshot{}, err
	}

	return staterender.Snapshot{
		SessionID: state.SessionID,
		Head:      state.Head,
		Digest:    state.Digest,
		State:     state.State,
	}, nil
}

// awaitHead waits until router has played back the host operations up to head.
func awaitHead(ctx context.Context, router ports.OperationRouter, head int64) error {
	tracker, ok := router.(interface{ SeqHead() int64 })
	if !ok {
		return nil
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for tracker.SeqHead() < head && router.State() != ports.RouterError {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (a *app) hostRouter(client *httpclient.Client, transport string, joined domain.JoinResult) (ports.OperationRouter, error) {
	switch transport {
	case transportLive:
		endpoint, err := client.LiveURL(joined.SessionID)
		if err != nil {
			return nil, err
		}
		return live.New(endpoint, joined.SessionID, joined.MemberID,
			live.WithToken(client.Token()),
			live.WithMaxRetries(a.config.GetUint64(keyMaxRetries)),
			live.WithLogger(a.logger),
		), nil
	case transportPullbox:
		return pullbox.New(client, joined.SessionID, joined.MemberID,
			pullbox.WithConfig(pullbox.Config{
				PollInterval:   a.config.GetDuration(keyPollInterval),
				MaxRetries:     a.config.GetUint64(keyMaxRetries),
				MaxFailedSyncs: a.config.GetInt(keyMaxFailedSyncs),
			}),
			pullbox.WithLogger(a.logger),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownTransport, transport)
	}
}
