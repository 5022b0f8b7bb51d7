package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SinkMQTT    = "mqtt"
	SinkVSCP    = "vscp"
	SinkConsole = "console"

	PolicyFailFast = "fail-fast"
	PolicyCollect  = "collect"

	FormatJSON  = "json"
	FormatSenML = "senml"

	AdjustBarometric = "barometric"
	AdjustLegacy     = "legacy"

	EnvPrefix = "BME680"
)

type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
	Format   string
	Timeout  time.Duration
}

// Server returns the broker URL in the form paho expects.
func (m MQTTConfig) Server() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

type VSCPConfig struct {
	Host     string
	Username string
	Password string
	Timeout  time.Duration
}

type BME680Config struct {
	I2CBus           string
	I2CAddress       int
	SeaLevelPressure float64 // hPa
	TempCorrection   float64 // °C, subtracted from the reading
	Elevation        float64 // m
	PressureAdjust   string
}

// ChannelConfig holds the per quantity addressing.
type ChannelConfig struct {
	Kind        measurement.Kind
	SensorIndex uint8
	ID          uint16
	Note        string
}

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Verbose     bool
	Sink        string
	Simulate    bool
	Interval    time.Duration
	Policy      string
	MetricsAddr string

	GUID     string
	Zone     uint8
	Subzone  uint8
	Channels []ChannelConfig

	MQTT   MQTTConfig
	VSCP   VSCPConfig
	BME680 BME680Config
}

// SetDefaults seeds v with the built-in configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("general.verbose", false)
	v.SetDefault("general.sink", SinkMQTT)
	v.SetDefault("general.simulate", false)
	v.SetDefault("general.interval", "0s")
	v.SetDefault("general.policy", PolicyFailFast)
	v.SetDefault("general.metrics_addr", "")
	v.SetDefault("general.channels", kindsCSV(measurement.Kinds))

	v.SetDefault("vscp.host", "localhost:9598")
	v.SetDefault("vscp.user", "admin")
	v.SetDefault("vscp.password", "")
	v.SetDefault("vscp.timeout", "5s")
	v.SetDefault("vscp.guid", "")
	v.SetDefault("vscp.zone", 0)
	v.SetDefault("vscp.subzone", 0)

	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic", "vscp/{guid}/miso/{class}/{type}")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.format", FormatJSON)
	v.SetDefault("mqtt.timeout", "5s")

	v.SetDefault("bme680.i2c_bus", "1")
	v.SetDefault("bme680.i2c_address", "0x77")
	v.SetDefault("bme680.sea_level_pressure", 1013.25)
	v.SetDefault("bme680.temp_corr", 2.30)
	v.SetDefault("bme680.height_at_location", 412.0)
	v.SetDefault("bme680.pressure_adjust", AdjustBarometric)

	for _, kind := range measurement.Kinds {
		ch, _ := measurement.DefaultChannel(kind)
		v.SetDefault("vscp.sensorindex_"+string(kind), 0)
		v.SetDefault("vscp.id_"+string(kind), ch.ID)
		v.SetDefault("mqtt.note_"+string(kind), ch.Note)
	}
}

// New returns a viper instance with defaults and BME680_* environment
// overrides (e.g. BME680_MQTT_PASSWORD) configured.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the command line overrides on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Path to configuration file (ini, json, yaml)")
	fs.BoolP("verbose", "v", false, "Print debug output")
	fs.String("sink", SinkMQTT, "Publish to: mqtt|vscp|console")
	fs.Bool("simulate", false, "Use fixed simulated sensor values")
	fs.Duration("interval", 0, "Repeat every interval (0 publishes once)")
	fs.String("policy", PolicyFailFast, "On publish error: fail-fast|collect")
	fs.String("metrics-addr", "", "Serve prometheus metrics on this address")
	fs.String("channels", "", "Comma-separated channels e.g. temperature,humidity")
	fs.String("guid", "", "GUID override (two LSBs are replaced by the channel id)")
	fs.String("mqtt-host", "", "MQTT broker host")
	fs.Int("mqtt-port", 0, "MQTT broker port")
	fs.String("mqtt-user", "", "MQTT username")
	fs.String("mqtt-pass", "", "MQTT password")
	fs.String("mqtt-topic", "", "MQTT topic template ({guid}, {class}, {type})")
	fs.String("mqtt-client-id", "", "MQTT client id")
	fs.String("vscp-host", "", "VSCP daemon host:port")
	fs.String("vscp-user", "", "VSCP username")
	fs.String("vscp-pass", "", "VSCP password")
}

var flagKeys = map[string]string{
	"verbose":        "general.verbose",
	"sink":           "general.sink",
	"simulate":       "general.simulate",
	"interval":       "general.interval",
	"policy":         "general.policy",
	"metrics-addr":   "general.metrics_addr",
	"channels":       "general.channels",
	"guid":           "vscp.guid",
	"mqtt-host":      "mqtt.host",
	"mqtt-port":      "mqtt.port",
	"mqtt-user":      "mqtt.user",
	"mqtt-pass":      "mqtt.password",
	"mqtt-topic":     "mqtt.topic",
	"mqtt-client-id": "mqtt.client_id",
	"vscp-host":      "vscp.host",
	"vscp-user":      "vscp.user",
	"vscp-pass":      "vscp.password",
}

// BindFlags makes changed flags from fs override file and env values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional configuration file at path into v and returns the
// resulting configuration. Files without a known extension are read as INI.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml", ".toml", ".ini":
		default:
			v.SetConfigType("ini")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	var err error

	cfg.Verbose = v.GetBool("general.verbose")
	if v.IsSet("general.bverbose") {
		cfg.Verbose = cfg.Verbose || v.GetBool("general.bverbose")
	}
	cfg.Sink = strings.ToLower(v.GetString("general.sink"))
	cfg.Simulate = v.GetBool("general.simulate")
	if cfg.Interval, err = parseInterval(v.GetString("general.interval")); err != nil {
		return cfg, fmt.Errorf("general.interval: %w", err)
	}
	cfg.Policy = strings.ToLower(v.GetString("general.policy"))
	cfg.MetricsAddr = v.GetString("general.metrics_addr")

	cfg.GUID = v.GetString("vscp.guid")
	if cfg.Zone, err = getByte(v, "vscp.zone"); err != nil {
		return cfg, err
	}
	if cfg.Subzone, err = getByte(v, "vscp.subzone"); err != nil {
		return cfg, err
	}

	kinds, err := parseKinds(v.GetString("general.channels"))
	if err != nil {
		return cfg, err
	}
	for _, kind := range kinds {
		cc := ChannelConfig{Kind: kind, Note: v.GetString("mqtt.note_" + string(kind))}
		if cc.SensorIndex, err = getByte(v, "vscp.sensorindex_"+string(kind)); err != nil {
			return cfg, err
		}
		id := v.GetInt("vscp.id_" + string(kind))
		if id < 0 || id > 0xFFFF {
			return cfg, fmt.Errorf("vscp.id_%s: %d out of range 0..65535", kind, id)
		}
		cc.ID = uint16(id)
		cfg.Channels = append(cfg.Channels, cc)
	}

	cfg.MQTT = MQTTConfig{
		Host:     v.GetString("mqtt.host"),
		Port:     v.GetInt("mqtt.port"),
		Username: v.GetString("mqtt.user"),
		Password: v.GetString("mqtt.password"),
		ClientID: v.GetString("mqtt.client_id"),
		Topic:    v.GetString("mqtt.topic"),
		Retain:   v.GetBool("mqtt.retain"),
		Format:   strings.ToLower(v.GetString("mqtt.format")),
		Timeout:  v.GetDuration("mqtt.timeout"),
	}
	qos := v.GetInt("mqtt.qos")
	if qos < 0 || qos > 2 {
		return cfg, fmt.Errorf("mqtt.qos: %d must be 0, 1 or 2", qos)
	}
	cfg.MQTT.QoS = byte(qos)

	cfg.VSCP = VSCPConfig{
		Host:     v.GetString("vscp.host"),
		Username: v.GetString("vscp.user"),
		Password: v.GetString("vscp.password"),
		Timeout:  v.GetDuration("vscp.timeout"),
	}

	addr, err := parseIntOrHex(v.GetString("bme680.i2c_address"))
	if err != nil {
		return cfg, fmt.Errorf("bme680.i2c_address: %w", err)
	}
	cfg.BME680 = BME680Config{
		I2CBus:           v.GetString("bme680.i2c_bus"),
		I2CAddress:       addr,
		SeaLevelPressure: v.GetFloat64("bme680.sea_level_pressure"),
		TempCorrection:   v.GetFloat64("bme680.temp_corr"),
		Elevation:        v.GetFloat64("bme680.height_at_location"),
		PressureAdjust:   strings.ToLower(v.GetString("bme680.pressure_adjust")),
	}
	return cfg, nil
}

// Validate checks the values that cannot be checked while reading.
func (c Config) Validate() error {
	switch c.Sink {
	case SinkMQTT, SinkVSCP, SinkConsole:
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	switch c.Policy {
	case PolicyFailFast, PolicyCollect:
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	switch c.MQTT.Format {
	case FormatJSON, FormatSenML:
	default:
		return fmt.Errorf("unknown mqtt format %q", c.MQTT.Format)
	}
	switch c.BME680.PressureAdjust {
	case AdjustBarometric, AdjustLegacy:
	default:
		return fmt.Errorf("unknown pressure_adjust %q", c.BME680.PressureAdjust)
	}
	if c.Interval < 0 {
		return errors.New("interval must be >= 0")
	}
	if len(c.Channels) == 0 {
		return errors.New("no channels enabled")
	}
	if c.GUID != "" {
		if _, err := measurement.ParseGUID(c.GUID); err != nil {
			return err
		}
	}
	if c.Sink == SinkMQTT && (c.MQTT.Port <= 0 || c.MQTT.Port > 65535) {
		return fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.BME680.SeaLevelPressure <= 0 {
		return errors.New("bme680.sea_level_pressure must be > 0")
	}
	if c.BME680.Elevation >= 44330 {
		return errors.New("bme680.height_at_location must be below 44330 m")
	}
	return nil
}

func getByte(v *viper.Viper, key string) (uint8, error) {
	n := v.GetInt(key)
	if n < 0 || n > 0xFF {
		return 0, fmt.Errorf("%s: %d out of range 0..255", key, n)
	}
	return uint8(n), nil
}

func parseIntOrHex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

// parseInterval accepts a Go duration ("30s", "1m") or a bare number of
// seconds, as INI files usually carry.
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKinds returns the listed channels in publish order.
func parseKinds(s string) ([]measurement.Kind, error) {
	want := make(map[measurement.Kind]bool)
	for _, p := range parseCSV(s) {
		k := measurement.Kind(strings.ToLower(p))
		if _, ok := measurement.DefaultChannel(k); !ok {
			return nil, fmt.Errorf("invalid channel '%s'", p)
		}
		want[k] = true
	}
	out := make([]measurement.Kind, 0, len(want))
	for _, k := range measurement.Kinds {
		if want[k] {
			out = append(out, k)
		}
	}
	return out, nil
}

func kindsCSV(kinds []measurement.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
