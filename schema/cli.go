package schema

import "time"

type Config struct {
	ApiUrl   string
	InitData string // telegram init data, sent as auth header
	Account  string

	Port          string
	MetricPort    string
	SentryDsn     string
	RateWhitelist []string // origins or ips exempt from the api rate limit

	BoltDir   string
	UseSqlite bool
	SqliteDir string
	Mysql     string

	Kafka Kafka

	MaxRetries   int
	PollInterval time.Duration
	Window       time.Duration
	Cooldown     time.Duration
	TxPageLimit  int
}

type Kafka struct {
	Start bool
	Uri   string
}

func (c Config) Policy() Policy {
	p := DefaultPolicy()
	if c.MaxRetries > 0 {
		p.MaxRetries = c.MaxRetries
	}
	if c.PollInterval > 0 {
		p.PollInterval = c.PollInterval
	}
	if c.Window > 0 {
		p.Window = c.Window
	}
	if c.Cooldown > 0 {
		p.Cooldown = c.Cooldown
	}
	return p
}
