package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/daytrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, check or print configuration",
	Long: `Manage the trader configuration.

Subcommands:
  init     - write the default configuration
  validate - load a file and check it against every component
  show     - print the effective configuration after .env and TRADER_* overrides

Examples:
  trader config init -o trader.yaml
  trader config validate -f trader.yaml
  TRADER_RISK_PCT=0.005 trader config show`,
}

var (
	configInitOutput   string
	configInitForce    bool
	configValidatePath string
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output path (.yaml/.yml for YAML, JSON otherwise)")
	initCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	}
	validateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(initCmd, validateCmd, showCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitOutput); err == nil && !configInitForce {
		return fmt.Errorf("%s exists (use --force to overwrite)", configInitOutput)
	}
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("✓ Wrote default configuration to %s\n", configInitOutput)
	fmt.Printf("  next: trader backtest --config %s --data <bars.csv>\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	names := make([]string, len(cfg.Strategies))
	for i, s := range cfg.Strategies {
		names[i] = s.Name
	}
	fmt.Printf("✓ %s is valid\n", configValidatePath)
	out.Printf("  %s %s, capital %.2f, risk %s per trade\n", cfg.Symbol, cfg.Timeframe, cfg.Capital, pct(cfg.RiskPct))
	fmt.Printf("  windows %s, forced close %s (%s)\n", strings.Join(cfg.TradingWindows, ", "), cfg.ForcedCloseTime, cfg.Timezone)
	fmt.Printf("  strategies %s combined by %s\n", strings.Join(names, ", "), cfg.CombinationMethod)
	fmt.Printf("  journal %s %s\n", cfg.Journal.Type, cfg.Journal.Path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
