package main

import (
	"fmt"
	"os"

	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	brokerURL  string
	name       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "talkie",
		Short: "Half-duplex voice relay over MQTT",
		Long:  "Push-to-talk and voice-activated radio channels relayed through an MQTT broker",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				lc := talkie.DefaultLogConfig()
				lc.Level = talkie.DebugLevel
				lc.AddSource = true
				talkie.SetGlobalLogger(talkie.NewTalkieLogger(lc))
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&brokerURL, "broker", "", "Broker URL (mqtt://, mqtts://, ws://, wss://)")
	rootCmd.PersistentFlags().StringVarP(&name, "name", "n", "", "Display name")

	rootCmd.AddCommand(joinCmd())
	rootCmd.AddCommand(brokerCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		talkie.GetGlobalLogger().WithError(err).Fatal("Command failed")
	}
}

// loadConfig layers defaults, environment, the config file and flags, in that
// order.
func loadConfig() (*talkie.TalkieConfig, error) {
	config := talkie.NewTalkieConfig()
	if configPath != "" {
		if err := config.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}
	if brokerURL != "" {
		config.BrokerURL = brokerURL
	}
	if name != "" {
		config.DisplayName = name
	}
	if !verbose {
		if _, ok := talkie.ParseLogLevel(config.DebugLevel); ok {
			talkie.SetGlobalLogger(talkie.LoggerFromConfig(config))
		}
	}
	if issues := config.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "config: %s\n", issue)
		}
		return nil, talkie.NewConfigError(fmt.Sprintf("%d configuration issue(s)", len(issues)))
	}
	return config, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := talkie.NewTalkieConfig()
			if configPath != "" {
				if err := config.LoadConfigFile(configPath); err != nil {
					return err
				}
			}
			if brokerURL != "" {
				config.BrokerURL = brokerURL
			}
			if name != "" {
				config.DisplayName = name
			}
			config.PrintConfig()

			if issues := config.Validate(); len(issues) > 0 {
				fmt.Println("\nIssues:")
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}
			return nil
		},
	}
}
