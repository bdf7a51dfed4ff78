package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metaredact/internal/config"
	"metaredact/pkg/log"
)

// Version is stamped at build time with -ldflags "-X metaredact/cmd.Version=...".
var Version = "dev"

var (
	configPath string
	backend    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "metaredact",
	Short: "metaredact - extract file metadata and redact personal information",
	Long: "metaredact reads EXIF, XMP, IPTC, PNG and PDF metadata from files, " +
		"redacts personally identifying values and groups the result for review.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if backend != "" {
			loaded.Redact.Backend = backend
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		if err := log.Init(loaded.Log.Level, loaded.Log.Format, loaded.Log.OutputPath); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "redaction backend: rules, vertex or chat (overrides config)")
}
