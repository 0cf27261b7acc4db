package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/lmsexport/internal/app"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the export web service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app.New(opts.cfgPath)
			a.Start()

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(c)

			select {
			case <-c:
				cmd.Println("Received termination signal. Shutting down...")
			case <-cmd.Context().Done():
			}

			a.Stop()
			cmd.Println("done")

			return nil
		},
	}
}
