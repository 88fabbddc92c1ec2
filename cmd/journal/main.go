// journal is a minimalist personal journal.
//
// Usage:
//
//	journal write [text]     Keep an entry (reads stdin when no text is given)
//	journal read             Show entries grouped by how long ago they were kept
//	journal reflect          Show reflections; --generate asks for new ones
//	journal export           Write all entries to a JSON file
//	journal import <src>     Restore entries from a file, URL or stdin
//	journal forget --yes     Delete every entry and reflection
//	journal demo             Add synthetic entries spread over past months
//	journal serve            Start the REST API
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/api"
	"github.com/pbaille/journal/internal/config"
	"github.com/pbaille/journal/internal/demo"
	"github.com/pbaille/journal/internal/fetcher"
	"github.com/pbaille/journal/internal/generator"
	"github.com/pbaille/journal/internal/journal"
	"github.com/pbaille/journal/internal/logging"
	"github.com/pbaille/journal/internal/mirror"
	"github.com/pbaille/journal/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:          "journal",
		Short:        "A quiet place to keep evidence of the days",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/journal/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "database path (overrides storage.path)")

	rootCmd.AddCommand(writeCmd(&flags))
	rootCmd.AddCommand(readCmd(&flags))
	rootCmd.AddCommand(reflectCmd(&flags))
	rootCmd.AddCommand(exportCmd(&flags))
	rootCmd.AddCommand(importCmd(&flags))
	rootCmd.AddCommand(forgetCmd(&flags))
	rootCmd.AddCommand(demoCmd(&flags))
	rootCmd.AddCommand(serveCmd(&flags))

	return rootCmd
}

// app holds everything a command needs, opened from config
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	kv          *store.SQLite
	entries     *journal.Entries
	reflections *journal.Reflections
}

func openApp(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.Storage.Path = flags.dbPath
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	kv, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	entries, reflections := journal.Open(kv, journal.WithLogger(logger.Named("journal")))
	return &app{
		cfg:         cfg,
		logger:      logger,
		kv:          kv,
		entries:     entries,
		reflections: reflections,
	}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	_ = a.kv.Close()
}

// mirror builds the reflection orchestrator. Without an API key the
// generator is absent and reflection requests report unavailability.
func (a *app) mirror() *mirror.Mirror {
	var gen mirror.Generator
	g, err := generator.New(generator.Config{
		APIKey:    a.cfg.Reflection.APIKey,
		Model:     a.cfg.Reflection.Model,
		BaseURL:   a.cfg.Reflection.BaseURL,
		MaxTokens: a.cfg.Reflection.MaxTokens,
	})
	if err != nil {
		a.logger.Info("reflection generator disabled", zap.Error(err))
	} else {
		gen = g
	}

	return mirror.New(a.entries, a.reflections, gen,
		mirror.WithTimeout(a.cfg.Reflection.Timeout),
		mirror.WithLogger(a.logger.Named("mirror")),
	)
}

func writeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write [text]",
		Short: "Keep an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(args, " ")
			if len(args) == 0 {
				if starter := demo.Starter(demo.NewRand()); starter != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), faintStyle.Render(starter))
				}
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read entry: %w", err)
				}
				text = string(raw)
			}

			if _, err := a.entries.Create(text); err != nil {
				if errors.Is(err, journal.ErrEmptyText) {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing kept.")
					return nil
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Kept.")
			return nil
		},
	}
}

func readCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Show entries grouped by how long ago they were kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.entries.List()
			if err != nil {
				return err
			}

			renderFeed(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}
}

func reflectCmd(flags *globalFlags) *cobra.Command {
	var generate bool

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Show reflections drawn from your entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			m := a.mirror()
			out := cmd.OutOrStdout()

			status, err := m.Status()
			if err != nil {
				return err
			}
			if status.Phase == mirror.PhaseLocked {
				renderLocked(out, status)
				return nil
			}

			if generate && status.CanRegenerate {
				fmt.Fprintln(out, faintStyle.Render("Observing..."))
				_, err := m.Reflect(cmd.Context())
				switch {
				case errors.Is(err, mirror.ErrUnavailable):
					fmt.Fprintln(out, "The mirror is cloudy right now.")
				case err != nil:
					return err
				}
				if status, err = m.Status(); err != nil {
					return err
				}
			}

			renderReflections(out, status)

			if !status.CanRegenerate && generate {
				fmt.Fprintln(out, faintStyle.Render("The mirror was consulted less than a day ago."))
			}
			if status.CanRegenerate && !generate {
				fmt.Fprintln(out, faintStyle.Render("Run 'journal reflect --generate' to update the reflection."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "generate a new reflection when allowed")
	return cmd
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all entries to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if output == "-" {
				return a.entries.Export(cmd.OutOrStdout())
			}
			if output == "" {
				output = journal.ExportFilename(time.Now())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			if err := a.entries.Export(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or - for stdout")
	return cmd
}

func importCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|url|->",
		Short: "Restore entries from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			added, err := a.entries.ImportJSON(data)
			switch {
			case errors.Is(err, journal.ErrUnreadable):
				fmt.Fprintln(out, "Error: file was unreadable.")
				return nil
			case err != nil:
				return err
			case added == 0:
				fmt.Fprintln(out, "No new entries found.")
			default:
				fmt.Fprintf(out, "Restored %d memories.\n", added)
			}
			return nil
		},
	}
}

func readSource(cmd *cobra.Command, src string) ([]byte, error) {
	switch {
	case src == "-":
		return io.ReadAll(cmd.InOrStdin())
	case fetcher.IsURL(src):
		return fetcher.Fetch(cmd.Context(), src)
	default:
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read import: %w", err)
		}
		return data, nil
	}
}

func forgetCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete every entry and reflection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this permanently deletes all entries and reflections; pass --yes to confirm")
			}

			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.entries.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The mirror forgets everything.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func demoCmd(flags *globalFlags) *cobra.Command {
	var count, days int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Add synthetic entries spread over past months",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("count") {
				count = a.cfg.Demo.Count
			}
			window := a.cfg.DemoWindow()
			if cmd.Flags().Changed("days") {
				window = time.Duration(days) * 24 * time.Hour
			}

			generated := demo.Generate(time.Now(), count, window, demo.NewRand())
			added, err := a.entries.Merge(generated)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d entries.\n", added)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", demo.DefaultCount, "number of entries to generate")
	cmd.Flags().IntVar(&days, "days", int(demo.DefaultWindow/(24*time.Hour)), "spread entries over this many past days")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			server := api.New(a.entries, a.reflections, a.mirror(), a.logger.Named("api"), api.Config{
				Addr:       addr,
				DemoCount:  a.cfg.Demo.Count,
				DemoWindow: a.cfg.DemoWindow(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Run() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides server.addr)")
	return cmd
}
