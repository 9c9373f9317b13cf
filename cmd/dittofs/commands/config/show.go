package config

import (
	"fmt"
	"os"

	"github.com/marmos91/nfsv3d/internal/cli/output"
	"github.com/marmos91/nfsv3d/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current DittoFS configuration.

By default outputs YAML format. Use --output to change format; the
table format lists the configured shares.

Examples:
  # Show default config as YAML
  dittofs config show

  # Show as JSON
  dittofs config show --output json

  # List the configured shares as a table
  dittofs config show --output table

  # Show specific config file
  dittofs config show --config /etc/dittofs/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (table|yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Parse output format
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	printer := output.NewPrinter(os.Stdout, format, false)
	if format == output.FormatTable {
		return printer.Print(sharesTable(cfg))
	}
	return printer.Print(cfg)
}

// sharesTable renders the configured share list for the table format.
func sharesTable(cfg *config.Config) output.TableRenderer {
	table := output.NewTableData("NAME", "PATH", "ACCESS", "SYMLINKS")
	for _, s := range cfg.Shares {
		access := "read-write"
		if s.ReadOnly {
			access = "read-only"
		}
		table.AddRow(s.Name, s.Path, access, fmt.Sprintf("%t", s.Symlinks))
	}
	return table
}
