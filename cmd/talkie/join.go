package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcwolfapps/TALKIE-CM/pkg/audiodev"
	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
	"github.com/spf13/cobra"
)

func joinCmd() *cobra.Command {
	var (
		vox      bool
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "join [channel]",
		Short: "Join a channel",
		Long:  "Join a channel and talk. Channel ids are up to 6 characters and case-insensitive.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			channelID := config.ChannelID
			if len(args) > 0 {
				channelID = args[0]
			}
			if vox {
				config.VoxEnabled = true
			}

			logger := talkie.GetGlobalLogger()
			device, err := audiodev.New(logger)
			if err != nil {
				return err
			}
			defer device.Close()

			opts := []talkie.SessionOption{
				talkie.WithCaptureDevice(device),
				talkie.WithPlayer(device),
				talkie.WithLogger(logger),
			}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				opts = append(opts, talkie.WithLocationSource(talkie.StaticLocation{
					Coordinates: talkie.Coordinates{Lat: lat, Lng: lng},
				}))
			}

			session, err := talkie.NewSession(config, talkie.NewAudioConfig(), opts...)
			if err != nil {
				return err
			}
			defer session.Close()

			return runJoin(cmd.Context(), session, channelID)
		},
	}

	cmd.Flags().BoolVar(&vox, "vox", false, "Start with voice activation enabled")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Fixed latitude for the radar")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Fixed longitude for the radar")
	return cmd
}

func runJoin(ctx context.Context, session *talkie.Session, channelID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &console{out: os.Stdout}
	defer session.AddActivityHandler(out.entry)()
	defer session.AddStateHandler(out.state)()

	if err := session.Connect(channelID); err != nil {
		return err
	}
	out.printf("%s\n", styles.help.Render(joinHelp))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return session.Disconnect()
		case line, ok := <-lines:
			if !ok {
				return session.Disconnect()
			}
			if quit := handleLine(session, out, line); quit {
				return session.Disconnect()
			}
		}
	}
}

func handleLine(session *talkie.Session, out *console, line string) (quit bool) {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")

	var err error
	switch {
	case line == "":
		if session.State() == talkie.Transmitting {
			err = session.StopTransmit()
		} else {
			err = session.StartTransmit()
		}
	case cmd == "/quit" || cmd == "/q":
		return true
	case cmd == "/vox":
		err = session.SetVOX(!session.VOXEnabled())
		if err == nil {
			out.printf("%s\n", styles.help.Render(fmt.Sprintf("VOX %v", session.VOXEnabled())))
		}
	case cmd == "/who":
		if !session.State().IsLinked() {
			out.printf("%s\n", styles.help.Render("no channel linked"))
			break
		}
		out.roster(session)
	case cmd == "/level":
		out.printf("MIC %s\n", levelMeter(session.Level(), 20))
	case cmd == "/name":
		err = session.SetDisplayName(arg)
	case cmd == "/stats":
		st := session.Stats()
		out.printf("tx %d sent %d failed · rx %d played %d dropped %d undecodable\n",
			st.Transmit.ChunksSent, st.Transmit.ChunksFailed,
			st.Receive.Played, st.Receive.Dropped, st.Receive.DecodeFailures)
	case strings.HasPrefix(cmd, "/"):
		out.printf("%s\n", styles.help.Render(joinHelp))
	default:
		err = session.SendText(line)
	}
	if err != nil {
		out.printf("%s\n", styles.err.Render(err.Error()))
	}
	return false
}
