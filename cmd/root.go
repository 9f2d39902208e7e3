package cmd

import (
	"os"
	"sync"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "odfops",
		Short:         "odfops: replicated operations for collaborative ODF editing",
		Long:          "odfops runs a session host that sequences document operations for every member of an editing session, and replays, pushes and inspects operation logs from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(&stderrOf{cmd: rootCmd})
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().Bool("quiet", false, "do not show progress spinners")
	_ = app.config.BindPFlag(keyQuiet, rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newUserCmd(app),
		newReplayCmd(app),
		newPushCmd(app),
		newStatusCmd(app),
	)

	return rootCmd
}

type stderrOf struct {
	mu  sync.Mutex
	cmd *cobra.Command
}

func (w *stderrOf) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cmd.ErrOrStderr().Write(p)
}

// Fd lets terminal detection see through the wrapper.
func (w *stderrOf) Fd() uintptr {
	if f, ok := w.cmd.ErrOrStderr().(*os.File); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}
