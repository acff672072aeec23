package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glimte/detour-go"
	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/internal/fixtures"
	"github.com/glimte/detour-go/patching"
	"github.com/glimte/detour-go/transports/rabbitmq"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "detour",
		Short: "Exercise the detour interception engine",
		Long: `detour runs the finalizer scenario matrix against the interception engine
and checks patch manifests against the fixture registry.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	logger := func(cmd *cobra.Command) *slog.Logger {
		if !verbose {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	rootCmd.AddCommand(
		newScenariosCmd(logger),
		newManifestCmd(logger),
		newCatalogCmd(),
	)
	return rootCmd
}

func newScenariosCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		filter string
		trace  bool
	)

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Run the finalizer scenario matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger(cmd)

			opts := []patching.StoreOption{patching.WithLogger(log)}
			if trace {
				traceLog := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
				opts = append(opts, patching.WithObserver(interceptors.NewLoggingObserver(traceLog)))
			}

			var rows []scenarioRow
			for _, s := range fixtures.FinalizerScenarios {
				if filter != "" && !strings.Contains(strings.ToLower(s.Name()), strings.ToLower(filter)) {
					continue
				}
				obs, err := fixtures.RunScenario(ctx, s, opts...)
				if err == nil {
					err = s.Check(obs)
				}
				rows = append(rows, scenarioRow{scenario: s, err: err})
			}

			if len(rows) == 0 {
				return fmt.Errorf("no scenario matches %q", filter)
			}

			failed := printScenarios(cmd.OutOrStdout(), rows)
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only run scenarios whose name contains this text")
	cmd.Flags().BoolVar(&trace, "trace", false, "Log every pipeline step")
	return cmd
}

func newManifestCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with patch manifests",
	}

	var (
		amqpURL  string
		exchange string
	)
	checkCmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Apply a manifest to the fixture registry and report the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger(cmd)

			m, err := patching.LoadManifest(args[0])
			if err != nil {
				return err
			}

			corpus, err := fixtures.NewCorpus(nil)
			if err != nil {
				return fmt.Errorf("failed to build fixture registry: %w", err)
			}

			opts := []patching.StoreOption{patching.WithLogger(log)}
			if amqpURL != "" {
				publisher, err := rabbitmq.Dial(ctx, amqpURL,
					rabbitmq.WithExchange(exchange),
					rabbitmq.WithLogger(log),
				)
				if err != nil {
					return fmt.Errorf("failed to connect to %s: %w", rabbitmq.SanitizeURL(amqpURL), err)
				}
				defer publisher.Close()
				opts = append(opts, patching.WithEventSink(publisher))
			}

			patcher, err := detour.New(m.Owner, patching.NewStore(corpus.Registry, opts...), detour.WithLogger(log))
			if err != nil {
				return err
			}

			applied, applyErr := patcher.ApplyManifest(ctx, m, corpus.Catalog())
			printManifestResult(cmd.OutOrStdout(), m, applied, applyErr)

			if err := patcher.UnpatchAll(ctx); err != nil {
				return fmt.Errorf("failed to unpatch: %w", err)
			}
			if applyErr != nil {
				return errors.New("manifest check failed")
			}
			return nil
		},
	}
	checkCmd.Flags().StringVar(&amqpURL, "amqp", "", "Publish lifecycle events to this RabbitMQ URL")
	checkCmd.Flags().StringVar(&exchange, "exchange", rabbitmq.DefaultExchange, "Exchange for lifecycle events")

	manifestCmd.AddCommand(checkCmd)
	return manifestCmd
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the fixture hooks a manifest can reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			corpus, err := fixtures.NewCorpus(nil)
			if err != nil {
				return err
			}

			catalog := corpus.Catalog()
			ids := make([]string, 0, len(catalog))
			for id := range catalog {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Fixture hooks"))
			for _, id := range ids {
				fmt.Fprintf(out, "  %-45s %s\n", id, mutedStyle.Render(contracts.NormalizePriority(catalog[id].Priority).String()))
			}
			return nil
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
