package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jgivc/lmsexport/internal/app"
	"github.com/jgivc/lmsexport/internal/config"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	envCanvasURL   = "CANVAS_URL"
	envCanvasToken = "CANVAS_TOKEN"
)

var version = "dev"

type rootOptions struct {
	cfgPath string
	fs      afero.Fs
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	cmd := &cobra.Command{
		Use:           "lmsexport",
		Short:         "Export course files from a Canvas LMS into a zip archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "config.yml", "Path to config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newCoursesCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func (o *rootOptions) services(logOut io.Writer) (*config.Config, *app.Services, error) {
	cfg, err := config.Load(o.fs, o.cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot load config: %w", err)
	}

	log, err := app.NewLogger(cfg.LogLevel, logOut)
	if err != nil {
		return nil, nil, err
	}

	return cfg, app.NewServices(cfg, nil, log), nil
}

// credentials falls back to CANVAS_URL and CANVAS_TOKEN for flags left empty.
func credentials(baseURL, token string) *entity.Credentials {
	if baseURL == "" {
		baseURL = os.Getenv(envCanvasURL)
	}

	if token == "" {
		token = os.Getenv(envCanvasToken)
	}

	return &entity.Credentials{BaseURL: baseURL, Token: token}
}

func addCredentialFlags(cmd *cobra.Command, baseURL, token *string) {
	cmd.Flags().StringVar(baseURL, "url", "", "LMS base url (default $"+envCanvasURL+")")
	cmd.Flags().StringVar(token, "token", "", "LMS access token (default $"+envCanvasToken+")")
}
