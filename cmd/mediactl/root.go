package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/media-search/internal/client"
	"github.com/kirillkom/media-search/internal/infrastructure/resilience"
	"github.com/kirillkom/media-search/internal/observability/logging"
)

type cliOptions struct {
	apiURL   string
	logLevel string
	retries  bool
}

type cli struct {
	opts   cliOptions
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Upload, search and play back media assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.logger = logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "mediactl", c.opts.logLevel)
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.apiURL, "api", envOr("MEDIA_API_URL", "http://localhost:8080"), "media-search API base URL")
	flags.StringVar(&c.opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level for diagnostics on stderr")
	flags.BoolVar(&c.opts.retries, "retry", true, "retry transient API failures")

	root.AddCommand(
		c.uploadCmd(),
		c.listCmd(),
		c.watchCmd(),
		c.searchCmd(),
		c.extractCmd(),
		c.deleteCmd(),
		c.jumpCmd(),
		c.navigateCmd(),
	)
	return root
}

func (c *cli) client() *client.Client {
	opts := []client.Option{}
	if c.opts.retries {
		executor := resilience.NewExecutor(resilience.ClientConfig(), resilience.WithLogger(c.logger))
		opts = append(opts, client.WithExecutor(executor))
	}
	return client.New(c.opts.apiURL, opts...)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
