package config

import (
	"fmt"

	"github.com/marmos91/nfsv3d/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the DittoFS configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  dittofs config validate

  # Validate specific config file
  dittofs config validate --config /etc/dittofs/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.DefaultConfigPath()
	}

	var warnings []string

	if len(cfg.Shares) == 0 {
		warnings = append(warnings, "no shares configured - the server will have nothing to export")
	}
	if cfg.NFS.PortmapperPort != -1 && cfg.NFS.PortmapperHost == "" {
		warnings = append(warnings, "portmapper registration enabled but portmapper_host is empty")
	}
	if cfg.NFS.ThreadPoolSize != 0 && (cfg.NFS.ThreadPoolSize < 4 || cfg.NFS.ThreadPoolSize > 50) {
		warnings = append(warnings, "thread_pool_size outside the recommended floor/ceiling of 4-50")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  NFS port:        %d (TCP+UDP)\n", cfg.NFS.Port)
	fmt.Printf("  Shares:          %d\n", len(cfg.Shares))
	fmt.Printf("  Thread pool:     %d\n", cfg.NFS.ThreadPoolSize)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
