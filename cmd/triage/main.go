package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mailtriage/internal/config"
	pkgconfig "mailtriage/pkg/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configDir   string
	env         string
	modelURL    string
	threshold   float64
	maxRedrafts int
	debug       bool
}

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Self-hosted email triage agent",
	Long: `triage categorizes inbound email with a local model, routes it through
a fixed decision graph and drafts guardrail-checked replies.

Configuration is read from <config-dir>/base.yaml, overlaid with
<config-dir>/<env>.yaml and environment variables. Flags win over both.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configDir, "config-dir", "config", "Directory holding base.yaml and <env>.yaml")
	f.StringVar(&rootFlags.env, "env", pkgconfig.GetConfigEnv(), "Config environment (default: $CONFIG_ENV or local)")
	f.StringVar(&rootFlags.modelURL, "model-url", "", "Ollama base URL, overrides ollama.base_url")
	f.Float64Var(&rootFlags.threshold, "threshold", 0, "Low-confidence threshold, overrides policy.low_confidence_threshold (0 never escalates on confidence)")
	f.IntVar(&rootFlags.maxRedrafts, "max-redrafts", 0, "Redraft attempts before escalation, overrides policy.max_redraft_attempts (0 escalates on the first rejection)")
	f.BoolVar(&rootFlags.debug, "debug", false, "Development logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.Version = version
}

// loadConfig loads the layered config and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rootFlags.env, rootFlags.configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("model-url") {
		cfg.Ollama.BaseURL = rootFlags.modelURL
	}
	if flags.Changed("threshold") {
		cfg.Policy.LowConfidenceThreshold = rootFlags.threshold
	}
	if flags.Changed("max-redrafts") {
		cfg.Policy.MaxRedraftAttempts = rootFlags.maxRedrafts
	}
	if flags.Changed("debug") {
		cfg.Debug = rootFlags.debug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
