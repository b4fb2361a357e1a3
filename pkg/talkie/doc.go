// Package talkie implements a half-duplex voice relay client over MQTT.
//
// # Overview
//
// Participants join a short named channel, talk with push-to-talk or
// voice-activated transmission (VOX) and hear each other in arrival order.
// A presence heartbeat keeps a roster of who is on the channel, who is
// talking and where they are.
//
// Each channel maps onto three topics below a common prefix:
//
//	talkie/premium/v2/ALPHA/voice     VoiceMessage, one per audio chunk
//	talkie/premium/v2/ALPHA/presence  PresenceMessage heartbeats
//	talkie/premium/v2/ALPHA/text      TextMessage
//
// # Quick Start
//
//	config := talkie.NewTalkieConfig()
//	dev, err := audiodev.New(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	session, err := talkie.NewSession(config, talkie.NewAudioConfig(),
//		talkie.WithCaptureDevice(dev),
//		talkie.WithPlayer(dev),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.AddStateHandler(talkie.CreateStateLoggingHandler(nil))
//	if err := session.Connect("ALPHA"); err != nil {
//		log.Fatal(err)
//	}
//
//	session.StartTransmit()
//	time.Sleep(2 * time.Second)
//	session.StopTransmit()
//
// # Session States
//
// A Session moves Idle → Connecting → Connected and from there into
// Transmitting or Receiving and back. A transport failure moves it to Error
// until Connect is called again. Transmit and receive are tracked
// independently; when both are active the displayed state is Transmitting.
//
// # Audio
//
// Outgoing audio is cut into chunks of 200-250ms, encoded as base64 PCM16
// and published with QoS 0. Incoming chunks are queued and played strictly
// one after another. Chunks that fail to decode are skipped, and when the
// backlog exceeds MaxQueuedChunks the oldest are dropped.
//
// # Configuration
//
// NewTalkieConfig reads a .env file, an optional YAML file named by
// TALKIE_CONFIG and TALKIE_* environment variables, in that order.
//
//	TALKIE_BROKER_URL=tcp://192.168.1.10:1883
//	TALKIE_CHANNEL=ALPHA
//	TALKIE_VOX_ENABLED=true
//	TALKIE_DEBUG_LEVEL=DEBUG
//
// # Local Broker
//
// Broker embeds an MQTT broker with TCP and websocket listeners for use on a
// LAN without internet access.
package talkie
