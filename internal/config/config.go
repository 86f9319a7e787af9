package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

type Config struct {
	Network struct {
		WSKeepAliveSeconds int `yaml:"ws_keepalive_seconds"`
	} `yaml:"network"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
		PushIntervalMs      int      `yaml:"push_interval_ms"`
	} `yaml:"server"`
	Feed struct {
		Mode                string   `yaml:"mode"` // sim, websocket, kafka, replay
		GatewayURLs         []string `yaml:"gateway_urls"`
		DialTimeoutSeconds  int      `yaml:"dial_timeout_seconds"`
		ReconnectSeconds    int      `yaml:"reconnect_seconds"`
		ReconnectBurst      int      `yaml:"reconnect_burst"`
		ReconnectPerSecond  float64  `yaml:"reconnect_per_second"`
		DiscoverInstruments bool     `yaml:"discover_instruments"`
		AutoRegister        bool     `yaml:"auto_register"`
		Kafka               struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
			GroupID string   `yaml:"group_id"`
		} `yaml:"kafka"`
		ReplayPath       string `yaml:"replay_path"`
		ReplayIntervalMs int    `yaml:"replay_interval_ms"`
		ReplayPaced      bool   `yaml:"replay_paced"`
		SimIntervalMs    int    `yaml:"sim_interval_ms"`
		SimSeed          int64  `yaml:"sim_seed"`
	} `yaml:"feed"`
	Replica struct {
		BufferSoftCap         int `yaml:"buffer_soft_cap"`
		BufferKeep            int `yaml:"buffer_keep"`
		LatencyWindow         int `yaml:"latency_window"`
		StalenessCheckSeconds int `yaml:"staleness_check_seconds"`
	} `yaml:"replica"`
	Publish struct {
		Enabled    bool     `yaml:"enabled"`
		Brokers    []string `yaml:"brokers"`
		Topic      string   `yaml:"topic"`
		IntervalMs int      `yaml:"interval_ms"`
	} `yaml:"publish"`
	Instruments []instrument.Instrument `yaml:"instruments"`
}

func defaultConfig() Config {
	var c Config
	c.Network.WSKeepAliveSeconds = 15
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Server.PushIntervalMs = 250
	c.Feed.Mode = "sim"
	c.Feed.GatewayURLs = []string{"ws://127.0.0.1:8000"}
	c.Feed.DialTimeoutSeconds = 5
	c.Feed.ReconnectSeconds = 5
	c.Feed.ReconnectBurst = 5
	c.Feed.ReconnectPerSecond = 0.5
	c.Feed.DiscoverInstruments = false
	c.Feed.AutoRegister = false
	c.Feed.Kafka.Brokers = []string{"127.0.0.1:9092"}
	c.Feed.Kafka.Topic = "quantflow.orderbook.events"
	c.Feed.Kafka.GroupID = "quantflow-replica"
	c.Feed.ReplayIntervalMs = 0
	c.Feed.ReplayPaced = false
	c.Feed.SimIntervalMs = 100
	c.Feed.SimSeed = 1
	c.Replica.BufferSoftCap = 1000
	c.Replica.BufferKeep = 800
	c.Replica.LatencyWindow = 200
	c.Replica.StalenessCheckSeconds = 5
	c.Publish.Enabled = false
	c.Publish.Brokers = []string{"127.0.0.1:9092"}
	c.Publish.Topic = "quantflow.books"
	c.Publish.IntervalMs = 1000
	c.Instruments = []instrument.Instrument{
		{ID: 1, Symbol: "BTC", Depth: 50},
		{ID: 2, Symbol: "ETH", Depth: 50},
		{ID: 3, Symbol: "ADA", Depth: 50},
	}
	return c
}

func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("QUANTFLOW_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("QUANTFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUANTFLOW_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("QUANTFLOW_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("QUANTFLOW_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("QUANTFLOW_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("QUANTFLOW_PUSH_INTERVAL_MS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Server.PushIntervalMs = n
		}
	}
	if v := os.Getenv("QUANTFLOW_FEED_MODE"); v != "" {
		c.Feed.Mode = v
	}
	if v := os.Getenv("QUANTFLOW_GATEWAY_URLS"); v != "" {
		c.Feed.GatewayURLs = splitCSV(v)
	}
	if v := os.Getenv("QUANTFLOW_FEED_DISCOVER"); v == "1" || v == "true" {
		c.Feed.DiscoverInstruments = true
	}
	if v := os.Getenv("QUANTFLOW_FEED_AUTO_REGISTER"); v == "1" || v == "true" {
		c.Feed.AutoRegister = true
	}
	if v := os.Getenv("QUANTFLOW_FEED_RECONNECT_SECONDS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Feed.ReconnectSeconds = n
		}
	}
	if v := os.Getenv("QUANTFLOW_KAFKA_BROKERS"); v != "" {
		c.Feed.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("QUANTFLOW_KAFKA_TOPIC"); v != "" {
		c.Feed.Kafka.Topic = v
	}
	if v := os.Getenv("QUANTFLOW_KAFKA_GROUP_ID"); v != "" {
		c.Feed.Kafka.GroupID = v
	}
	if v := os.Getenv("QUANTFLOW_REPLAY_PATH"); v != "" {
		c.Feed.ReplayPath = v
	}
	if v := os.Getenv("QUANTFLOW_REPLAY_INTERVAL_MS"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n >= 0 {
			c.Feed.ReplayIntervalMs = n
		}
	}
	if v := os.Getenv("QUANTFLOW_REPLAY_PACED"); v == "1" || v == "true" {
		c.Feed.ReplayPaced = true
	}
	if v := os.Getenv("QUANTFLOW_BUFFER_SOFT_CAP"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Replica.BufferSoftCap = n
		}
	}
	if v := os.Getenv("QUANTFLOW_BUFFER_KEEP"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Replica.BufferKeep = n
		}
	}
	if v := os.Getenv("QUANTFLOW_LATENCY_WINDOW"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Replica.LatencyWindow = n
		}
	}
	if v := os.Getenv("QUANTFLOW_PUBLISH_ENABLED"); v == "1" || v == "true" {
		c.Publish.Enabled = true
	}
	if v := os.Getenv("QUANTFLOW_PUBLISH_BROKERS"); v != "" {
		c.Publish.Brokers = splitCSV(v)
	}
	if v := os.Getenv("QUANTFLOW_PUBLISH_TOPIC"); v != "" {
		c.Publish.Topic = v
	}
	// Kafka credentials stay env-only, read through the secret store.
	if v := os.Getenv("QUANTFLOW_INSTRUMENTS"); v != "" {
		if list := parseInstruments(v); len(list) > 0 {
			c.Instruments = list
		}
	}
	c.normalize()
	return c
}

// normalize clamps cross-field settings so downstream components never
// see an inconsistent pair.
func (c *Config) normalize() {
	if c.Replica.BufferKeep >= c.Replica.BufferSoftCap {
		c.Replica.BufferKeep = c.Replica.BufferSoftCap * 4 / 5
	}
	if c.Server.PushIntervalMs <= 0 {
		c.Server.PushIntervalMs = 250
	}
	if c.Feed.SimIntervalMs <= 0 {
		c.Feed.SimIntervalMs = 100
	}
}

// Catalog materializes the configured instruments.
func (c Config) Catalog() *instrument.Catalog {
	return instrument.NewCatalog(c.Instruments)
}

// parseInstruments reads "id:symbol:depth" triples, comma separated;
// depth may be omitted ("1:BTC,2:ETH:25").
func parseInstruments(s string) []instrument.Instrument {
	var out []instrument.Instrument
	for _, item := range splitCSV(s) {
		parts := strings.Split(item, ":")
		if len(parts) < 2 {
			continue
		}
		var ins instrument.Instrument
		if _, err := fmt.Sscan(strings.TrimSpace(parts[0]), &ins.ID); err != nil || ins.ID <= 0 {
			continue
		}
		ins.Symbol = strings.TrimSpace(parts[1])
		if ins.Symbol == "" {
			continue
		}
		if len(parts) > 2 {
			_, _ = fmt.Sscan(strings.TrimSpace(parts[2]), &ins.Depth)
		}
		out = append(out, ins)
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
