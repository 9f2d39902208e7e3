package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	staterender "github.com/bnema/odfops/internal/adapters/render/state"
	"github.com/bnema/odfops/internal/adapters/server/httpclient"
	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/domain"
)

const connectTimeout = 5 * time.Second

type hostFlags struct {
	server   string
	login    string
	password string
}

func (f *hostFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "http://"+defaultListenAddr, "session host base url")
	cmd.Flags().StringVar(&f.login, "login", "", "login name")
	cmd.Flags().StringVar(&f.password, "password", "", "password")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")
}

func (a *app) connectHost(ctx context.Context, flags hostFlags) (*httpclient.Client, domain.LoginResult, error) {
	client := httpclient.New(flags.server, httpclient.WithLogger(a.logger))

	if status := client.Connect(ctx, connectTimeout); status != domain.NetworkReady {
		return nil, domain.LoginResult{}, fmt.Errorf("session host %s: %w (%s)", flags.server, domain.ErrHostUnreachable, status)
	}

	login, err := client.Login(ctx, flags.login, flags.password)
	if err != nil {
		return nil, domain.LoginResult{}, fmt.Errorf("log in as %s: %w", flags.login, err)
	}

	return client, login, nil
}

func newStatusCmd(app *app) *cobra.Command {
	var (
		host      hostFlags
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the host state of a session, or list sessions when none is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCallTimeout)
			defer cancel()

			client, _, err := app.connectHost(ctx, host)
			if err != nil {
				return err
			}

			if sessionID == "" {
				sessions, err := client.Sessions(ctx)
				if err != nil {
					return err
				}
				for _, id := range sessions {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			var state wire.StateResponse
			err = app.withProgress(ctx, "Fetching session state...", func(ctx context.Context) error {
				var err error
				state, err = client.State(ctx, domain.SessionID(sessionID))
				return err
			})
			if err != nil {
				return err
			}

			return app.writeSnapshot(cmd, staterender.Snapshot{
				SessionID: state.SessionID,
				Head:      state.Head,
				Digest:    state.Digest,
				State:     state.State,
			}, asJSON)
		},
	}

	host.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the state as JSON")

	return cmd
}
