package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coolbeans/indigo/pkg/config"
	"github.com/coolbeans/indigo/pkg/watch"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "indigo",
		Short: "Word web-page export to publication HTML converter",
		Long: `Indigo converts documents saved by Word as "Web Page" into clean,
structured HTML for publication.

It rebuilds lists from Word's paragraph classes, groups boxed notes,
links rule and table references, and decodes embedded citation fields
into compact keys with one JSON record per cited item.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log list and box decisions")

	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(assembleCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by all
// subcommands.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	var logger *zap.Logger
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file...]",
		Short: "Convert source documents",
		Long: `Convert each source document to an HTML file of the same name in the
output directory. Without arguments, every configured document is
converted.

Example:
  indigo convert "doc-src/html/Section A.html"
  indigo convert --config indigo.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			inputs := args
			if len(inputs) == 0 {
				for _, document := range cfg.Documents {
					inputs = append(inputs, cfg.SourcePath(document.Filename))
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no input files given and no documents configured")
			}

			p, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			for _, input := range inputs {
				outputPath, err := p.writeFile(input)
				if err != nil {
					return err
				}
				fmt.Printf("Generated %s\n", outputPath)
			}
			return nil
		},
	}
	return cmd
}

func assembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assemble",
		Short: "Convert all configured documents into one file",
		Long: `Convert the configured documents in order and combine them into a
single file, grouping consecutive documents of the same page type.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			p, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			outputPath, err := p.assembleAll()
			if err != nil {
				return err
			}
			fmt.Printf("Generated %s\n", outputPath)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconvert documents when they are saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			assembleOnChange, _ := cmd.Flags().GetBool("assemble")

			p, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			// Timers for different files fire independently; the decoder's
			// record store is not safe for concurrent use.
			var mu sync.Mutex
			handler := func(path string) error {
				mu.Lock()
				defer mu.Unlock()
				if assembleOnChange {
					_, err := p.assembleAll()
					return err
				}
				_, err := p.writeFile(path)
				return err
			}

			watcher := watch.NewWatcher(cfg.SourceDir, handler, 0, logger.Named("watch"))
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			<-signals
			return nil
		},
	}
	cmd.Flags().Bool("assemble", false, "Rebuild the combined file instead of the changed document")
	return cmd
}
