package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sarchlab/progress/monitoring"
	"github.com/sarchlab/progress/progress"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

var serveViper = viper.New()

// serveCmd is the `progress serve` command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve progress events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), serveOptionsFrom(serveViper))
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.Int("port", 0, "Port to listen on, 0 picks a random port")
	flags.String("address", "localhost", "Address to listen on")
	flags.Bool("no-browser", false, "Do not open a browser")
	flags.String("resources", "", "YAML file mapping URL paths to files")
	flags.Int("max-viewers", 0, "Maximum number of concurrent connections, 0 for no limit")
	flags.Int("retention", 0, "Number of events kept for replay, 0 keeps all")
	flags.Bool("demo", false, "Run a demo workload that publishes progress")

	bindCommandFlags(serveViper, serveCmd)
	rootCmd.AddCommand(serveCmd)
}

type serveOptions struct {
	port       int
	address    string
	noBrowser  bool
	resources  string
	maxViewers int
	retention  int
	demo       bool
}

func serveOptionsFrom(v *viper.Viper) serveOptions {
	return serveOptions{
		port:       v.GetInt("port"),
		address:    v.GetString("address"),
		noBrowser:  v.GetBool("no-browser"),
		resources:  v.GetString("resources"),
		maxViewers: v.GetInt("max-viewers"),
		retention:  v.GetInt("retention"),
		demo:       v.GetBool("demo"),
	}
}

func buildServer(
	opts serveOptions,
	registry *progress.Registry,
) (*monitoring.Server, error) {
	b := monitoring.MakeBuilder().
		WithAddress(opts.address).
		WithPort(opts.port).
		WithMaxViewers(opts.maxViewers).
		WithRetention(opts.retention).
		WithRegistry(registry).
		WithLogger(logrus.StandardLogger())

	if opts.noBrowser {
		b = b.WithoutBrowser()
	}

	if opts.resources != "" {
		resources, err := monitoring.LoadResourceFile(opts.resources)
		if err != nil {
			return nil, err
		}

		b = b.WithResources(resources)
	}

	return b.Build(), nil
}

func serve(ctx context.Context, opts serveOptions) error {
	registry := progress.Default()

	s, err := buildServer(opts, registry)
	if err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return err
	}

	atexit.Register(func() {
		if err := s.Stop(); err != nil {
			logrus.WithError(err).Warn("progress server did not stop cleanly")
		}
	})

	if _, err := s.WaitUntilReady(0); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.demo {
		go runDemo(ctx, registry.Main(), s)
	}

	<-ctx.Done()
	logrus.Info("interrupted, shutting down")

	return nil
}
