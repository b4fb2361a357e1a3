package main

import (
	"fmt"

	"github.com/mcwolfapps/TALKIE-CM/pkg/audiodev"
	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
	"github.com/spf13/cobra"
)

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Audio device management",
	}
	cmd.AddCommand(devicesListCmd())
	return cmd
}

func devicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audiodev.ListDevices()
			if err != nil {
				return err
			}

			fmt.Println(styles.title.Render("Audio Devices"))
			for _, d := range devices {
				marker := ""
				if d.DefaultInput {
					marker += styles.ok.Render(" (Default In)")
				}
				if d.DefaultOutput {
					marker += styles.ok.Render(" (Default Out)")
				}
				fmt.Printf("  %d: %s%s - %s, %s (%.0f Hz)\n",
					d.ID, d.Name, marker, d.Capabilities(), d.HostAPI, d.DefaultSampleRate)
			}

			audio := talkie.NewAudioConfig()
			if err := audiodev.ValidateInput(devices, audio.Channels); err != nil {
				fmt.Println(styles.err.Render("✗ " + err.Error()))
			} else {
				fmt.Println(styles.ok.Render("✓ Default input can capture"))
			}
			return nil
		},
	}
}
