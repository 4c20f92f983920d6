package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"gyeol/internal/config"
	"gyeol/internal/storage"
	"gyeol/pkg/gyeol"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// app carries the resolved settings for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	storeKind string
	dbPath    string
	seed      int64
	output    string
	envFile   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "gyeolctl",
		Short:         "Manage gyeol agents, their evolution and breeding",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.storeKind, "store", "", "store backend: memory|badger|sqlite (env GYEOL_STORE)")
	flags.StringVar(&a.dbPath, "db-path", "", "sqlite file or badger directory (env GYEOL_DB_PATH)")
	flags.Int64Var(&a.seed, "seed", 0, "fixed breeding seed; 0 draws a fresh seed per request (env GYEOL_SEED)")
	flags.StringVarP(&a.output, "output", "o", outputText, "output format: text|json|yaml")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		newInitCmd(a),
		newAgentCmd(a),
		newCompatCmd(a),
		newProgressCmd(a),
		newEvolveCmd(a),
		newEligibilityCmd(a),
		newBreedCmd(a),
		newAttemptsCmd(a),
		newServeCmd(a),
	)
	return root
}

// resolve merges env configuration with explicitly set flags.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = a.storeKind
	}
	if flags.Changed("db-path") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("seed") {
		cfg.Seed = a.seed
	}
	if cfg.Store == "" {
		cfg.Store = defaultCLIStore()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch a.output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unsupported output format: %s", a.output)
	}

	a.cfg = cfg
	a.logger = cfg.NewLogger(a.stderr)
	return nil
}

// defaultCLIStore prefers a persistent backend; a memory store would lose
// everything between invocations.
func defaultCLIStore() string {
	if kind := storage.DefaultStoreKind(); kind != storage.KindMemory {
		return kind
	}
	return storage.KindBadger
}

func (a *app) withClient(ctx context.Context, fn func(*gyeol.Client) error) error {
	client, err := gyeol.New(gyeol.Options{
		StoreKind:       a.cfg.Store,
		DBPath:          a.cfg.DBPath,
		Logger:          a.logger,
		Seed:            a.cfg.Seed,
		ConflictRetries: a.cfg.BadgerRetries,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	return fn(client)
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(*gyeol.Client) error {
				fmt.Fprintf(a.stdout, "initialized store=%s\n", a.cfg.Store)
				return nil
			})
		},
	}
}
