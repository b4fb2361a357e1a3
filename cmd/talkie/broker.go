package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
	"github.com/spf13/cobra"
)

func brokerCmd() *cobra.Command {
	var tcpAddr, wsAddr string

	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Run an embedded MQTT broker",
		Long:  "Run an open MQTT broker for a LAN, with TCP and websocket listeners",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := talkie.GetGlobalLogger()
			broker := talkie.NewBroker(talkie.BrokerConfig{TCPAddress: tcpAddr, WSAddress: wsAddr}, logger)
			if err := broker.Start(); err != nil {
				return err
			}
			defer broker.Close()

			if tcpAddr != "" {
				fmt.Printf("%s mqtt://%s\n", styles.label.Render("TCP"), tcpAddr)
			}
			if wsAddr != "" {
				fmt.Printf("%s ws://%s/mqtt\n", styles.label.Render("WS "), wsAddr)
			}
			fmt.Println(styles.help.Render("Ctrl+C to stop"))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			logger.Infof("Broker shutting down on %s", <-sig)
			return nil
		},
	}

	cmd.Flags().StringVar(&tcpAddr, "tcp", ":1883", "TCP listen address, empty to disable")
	cmd.Flags().StringVar(&wsAddr, "ws", ":8083", "Websocket listen address, empty to disable")
	return cmd
}
