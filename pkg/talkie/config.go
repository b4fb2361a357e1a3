package talkie

import (
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBrokerURL   = "wss://broker.hivemq.com:8000/mqtt"
	DefaultTopicPrefix = "talkie/premium/v2"
	MaxChannelIDLength = 6
)

type TalkieConfig struct {
	BrokerURL         string        `yaml:"broker_url"`
	TopicPrefix       string        `yaml:"topic_prefix"`
	ChannelID         string        `yaml:"channel_id"`
	DisplayName       string        `yaml:"display_name"`
	VoxEnabled        bool          `yaml:"vox_enabled"`
	VoxUpperThreshold float64       `yaml:"vox_upper_threshold"`
	VoxLowerThreshold float64       `yaml:"vox_lower_threshold"`
	VoxSampleInterval time.Duration `yaml:"vox_sample_interval"`
	ChunkDuration     time.Duration `yaml:"chunk_duration"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	MaxQueuedChunks   int           `yaml:"max_queued_chunks"`
	LogCapacity       int           `yaml:"log_capacity"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
	RadarRangeMeters  float64       `yaml:"radar_range_meters"`
	DebugLevel        string        `yaml:"debug_level"`
	DebugTransport    bool          `yaml:"debug_transport"`
}

// NewTalkieConfig returns the defaults overlaid with .env and TALKIE_*
// environment variables.
func NewTalkieConfig() *TalkieConfig {
	c := DefaultTalkieConfig()
	c.loadFromEnv()
	return c
}

// DefaultTalkieConfig returns the built-in defaults without reading the
// environment.
func DefaultTalkieConfig() *TalkieConfig {
	return &TalkieConfig{
		BrokerURL:         DefaultBrokerURL,
		TopicPrefix:       DefaultTopicPrefix,
		DisplayName:       fmt.Sprintf("UNIT-%d", 100+rand.Intn(899)),
		VoxUpperThreshold: 0.04,
		VoxLowerThreshold: 0.015,
		VoxSampleInterval: 120 * time.Millisecond,
		ChunkDuration:     200 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		StaleAfter:        10 * time.Second,
		MaxQueuedChunks:   25,
		LogCapacity:       9,
		ConnectTimeout:    10 * time.Second,
		PublishTimeout:    2 * time.Second,
		RadarRangeMeters:  5000,
		DebugLevel:        "INFO",
	}
}

func (c *TalkieConfig) loadFromEnv() {
	// Load .env if exists
	_ = godotenv.Load()

	if path := os.Getenv("TALKIE_CONFIG"); path != "" {
		if err := c.LoadConfigFile(path); err != nil {
			GetGlobalLogger().WithError(err).WithField("path", path).Warn("Ignoring unreadable config file")
		}
	}

	if v := os.Getenv("TALKIE_BROKER_URL"); v != "" {
		c.BrokerURL = v
	}
	if v := os.Getenv("TALKIE_TOPIC_PREFIX"); v != "" {
		c.TopicPrefix = strings.Trim(v, "/")
	}
	if v := os.Getenv("TALKIE_CHANNEL"); v != "" {
		c.ChannelID = v
	}
	if v := os.Getenv("TALKIE_DISPLAY_NAME"); v != "" {
		c.DisplayName = strings.ToUpper(v)
	}
	if v := os.Getenv("TALKIE_VOX_ENABLED"); v != "" {
		c.VoxEnabled = v == "true"
	}
	envFloat("TALKIE_VOX_UPPER", &c.VoxUpperThreshold)
	envFloat("TALKIE_VOX_LOWER", &c.VoxLowerThreshold)
	envFloat("TALKIE_RADAR_RANGE_METERS", &c.RadarRangeMeters)
	envMillis("TALKIE_VOX_SAMPLE_MS", &c.VoxSampleInterval)
	envMillis("TALKIE_CHUNK_MS", &c.ChunkDuration)
	envMillis("TALKIE_HEARTBEAT_MS", &c.HeartbeatInterval)
	envMillis("TALKIE_STALE_MS", &c.StaleAfter)
	envMillis("TALKIE_CONNECT_TIMEOUT_MS", &c.ConnectTimeout)
	envMillis("TALKIE_PUBLISH_TIMEOUT_MS", &c.PublishTimeout)
	envInt("TALKIE_MAX_QUEUED_CHUNKS", &c.MaxQueuedChunks)
	envInt("TALKIE_LOG_CAPACITY", &c.LogCapacity)

	if level := os.Getenv("TALKIE_DEBUG_LEVEL"); level != "" {
		c.DebugLevel = strings.ToUpper(level)
	}
	c.DebugTransport = os.Getenv("TALKIE_DEBUG_TRANSPORT") == "true"
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = val
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			*dst = val
		}
	}
}

func envMillis(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(val) * time.Millisecond
		}
	}
}

// LoadConfigFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *TalkieConfig) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return Wrapf(err, ErrCodeConfigInvalid, "parse %s", path)
	}
	c.TopicPrefix = strings.Trim(c.TopicPrefix, "/")
	return nil
}

// Validate returns list of issues
func (c *TalkieConfig) Validate() []string {
	issues := []string{}

	if c.BrokerURL == "" {
		issues = append(issues, "broker URL is empty")
	} else if u, err := url.Parse(c.BrokerURL); err != nil {
		issues = append(issues, fmt.Sprintf("Invalid broker URL: %v", err))
	} else if !supportedScheme(u.Scheme) {
		issues = append(issues, fmt.Sprintf("Unsupported broker scheme: %s", u.Scheme))
	}

	if strings.TrimSpace(c.TopicPrefix) == "" {
		issues = append(issues, "topic prefix is empty")
	} else if strings.ContainsAny(c.TopicPrefix, "+#") {
		issues = append(issues, "topic prefix must not contain MQTT wildcards")
	}

	if c.ChunkDuration < 200*time.Millisecond || c.ChunkDuration > 250*time.Millisecond {
		issues = append(issues, fmt.Sprintf("chunk duration %v outside 200ms-250ms", c.ChunkDuration))
	}
	if c.VoxSampleInterval < 100*time.Millisecond || c.VoxSampleInterval > 150*time.Millisecond {
		issues = append(issues, fmt.Sprintf("VOX sample interval %v outside 100ms-150ms", c.VoxSampleInterval))
	}
	if c.HeartbeatInterval < 2*time.Second || c.HeartbeatInterval > 3*time.Second {
		issues = append(issues, fmt.Sprintf("heartbeat interval %v outside 2s-3s", c.HeartbeatInterval))
	}
	if c.StaleAfter < 3*c.HeartbeatInterval {
		issues = append(issues, fmt.Sprintf("staleness threshold %v must be at least 3x the heartbeat interval", c.StaleAfter))
	}
	if c.VoxLowerThreshold >= c.VoxUpperThreshold {
		issues = append(issues, "VOX lower threshold must be strictly below the upper threshold")
	}
	if c.VoxLowerThreshold < 0 {
		issues = append(issues, "VOX lower threshold must not be negative")
	}
	if c.MaxQueuedChunks < 1 {
		issues = append(issues, "max queued chunks must be positive")
	}
	if c.LogCapacity < 1 {
		issues = append(issues, "log capacity must be positive")
	}
	if c.ConnectTimeout <= 0 || c.PublishTimeout <= 0 {
		issues = append(issues, "connect and publish timeouts must be positive")
	}
	if c.RadarRangeMeters <= 0 {
		issues = append(issues, "radar range must be positive")
	}
	if _, ok := ParseLogLevel(c.DebugLevel); !ok {
		issues = append(issues, fmt.Sprintf("Invalid debug level: %s", c.DebugLevel))
	}

	return issues
}

func supportedScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "mqtt", "tcp", "ssl", "tls", "mqtts", "tcps", "ws", "wss":
		return true
	}
	return false
}

// LoggerFromConfig builds a logger at the configured level.
func LoggerFromConfig(c *TalkieConfig) *TalkieLogger {
	lc := DefaultLogConfig()
	lc.Level, _ = ParseLogLevel(c.DebugLevel)
	return NewTalkieLogger(lc)
}

func (c *TalkieConfig) PrintConfig() {
	fmt.Println("Talkie Configuration")
	fmt.Println("==================================================")
	fmt.Printf("Broker URL: %s\n", c.BrokerURL)
	fmt.Printf("Topic Prefix: %s\n", c.TopicPrefix)
	if c.ChannelID != "" {
		fmt.Printf("Channel: %s\n", c.ChannelID)
	} else {
		fmt.Println("Channel: <not set>")
	}
	fmt.Printf("Display Name: %s\n", c.DisplayName)
	fmt.Printf("VOX Enabled: %t (upper %.3f, lower %.3f, every %v)\n",
		c.VoxEnabled, c.VoxUpperThreshold, c.VoxLowerThreshold, c.VoxSampleInterval)
	fmt.Printf("Chunk Duration: %v\n", c.ChunkDuration)
	fmt.Printf("Heartbeat: every %v, stale after %v\n", c.HeartbeatInterval, c.StaleAfter)
	fmt.Printf("Max Queued Chunks: %d\n", c.MaxQueuedChunks)
	fmt.Printf("Log Capacity: %d\n", c.LogCapacity)
	fmt.Printf("Debug Level: %s\n", c.DebugLevel)
	fmt.Printf("Debug Transport: %t\n", c.DebugTransport)
}

// AudioConfig describes the PCM format used on both capture and playback.
type AudioConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

func NewAudioConfig() *AudioConfig {
	return &AudioConfig{
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 320, // 20ms at 16kHz
	}
}

// SamplesIn returns the number of samples that make up d.
func (a *AudioConfig) SamplesIn(d time.Duration) int {
	return int(int64(a.SampleRate) * int64(a.Channels) * int64(d) / int64(time.Second))
}

func ValidateAudioConfig(config *AudioConfig) error {
	if config.SampleRate <= 0 {
		return NewConfigError("sample rate must be positive")
	}
	if config.Channels != 1 {
		return NewConfigError("only mono audio is supported")
	}
	if config.FramesPerBuffer <= 0 {
		return NewConfigError("frames per buffer must be positive")
	}
	return nil
}
