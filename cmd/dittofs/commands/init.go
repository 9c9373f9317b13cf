package commands

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/marmos91/nfsv3d/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoFS configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittofs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dittofs init

  # Walk through the settings interactively
  dittofs init --interactive

  # Initialize with custom path
  dittofs init --config /etc/dittofs/config.yaml

  # Force overwrite existing config
  dittofs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the initial settings instead of writing defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	opts := config.DefaultSampleOptions()
	if initInteractive {
		var err error
		opts, err = promptSampleOptions(opts)
		if err != nil {
			return err
		}
	}

	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		configPath, err = config.InitConfigWithOptions(configFile, initForce, opts)
	} else {
		configPath, err = config.InitConfigWithOptions(config.DefaultConfigPath(), initForce, opts)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: dittofs start")
	fmt.Printf("  3. Or specify custom config: dittofs start --config %s\n", configPath)

	return nil
}

// promptSampleOptions walks the user through the handful of settings a
// first configuration actually needs.
func promptSampleOptions(defaults config.SampleOptions) (config.SampleOptions, error) {
	opts := defaults

	portPrompt := promptui.Prompt{
		Label:   "NFS port (TCP and UDP)",
		Default: strconv.Itoa(defaults.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("port must be an integer between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return opts, fmt.Errorf("prompt aborted: %w", err)
	}
	opts.Port, _ = strconv.Atoi(portStr)

	namePrompt := promptui.Prompt{
		Label:   "Share name",
		Default: defaults.ShareName,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("share name must not be empty")
			}
			return nil
		},
	}
	if opts.ShareName, err = namePrompt.Run(); err != nil {
		return opts, fmt.Errorf("prompt aborted: %w", err)
	}

	pathPrompt := promptui.Prompt{
		Label:   "Export path",
		Default: defaults.SharePath,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("export path must not be empty")
			}
			return nil
		},
	}
	if opts.SharePath, err = pathPrompt.Run(); err != nil {
		return opts, fmt.Errorf("prompt aborted: %w", err)
	}

	roPrompt := promptui.Select{
		Label: "Access",
		Items: []string{"read-write", "read-only"},
	}
	_, access, err := roPrompt.Run()
	if err != nil {
		return opts, fmt.Errorf("prompt aborted: %w", err)
	}
	opts.ReadOnly = access == "read-only"

	return opts, nil
}
