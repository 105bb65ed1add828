package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/everFinance/b3cverify"
	"github.com/everFinance/b3cverify/schema"
	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "b3cverify",
		Usage: "verify B3C deposits and purchases against the backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api_url", Value: "http://127.0.0.1:3000/api", Usage: "backend api url", EnvVars: []string{"API_URL"}},
			&cli.StringFlag{Name: "init_data", Value: "", Usage: "telegram init data sent with every request", EnvVars: []string{"INIT_DATA"}},
			&cli.StringFlag{Name: "account", Value: "", Usage: "account whose balance is refreshed", EnvVars: []string{"ACCOUNT"}},

			&cli.StringFlag{Name: "port", Value: ":8080", EnvVars: []string{"PORT"}},
			&cli.StringFlag{Name: "metric_port", Value: ":9000", EnvVars: []string{"METRIC_PORT"}},
			&cli.StringFlag{Name: "sentry_dsn", Value: "", EnvVars: []string{"SENTRY_DSN"}},
			&cli.StringSliceFlag{Name: "rate_whitelist", Usage: "origins or ips exempt from the api rate limit", EnvVars: []string{"RATE_WHITELIST"}},

			&cli.StringFlag{Name: "bolt_dir", Value: "./data/bolt", Usage: "bolt db dir path", EnvVars: []string{"BOLT_DIR"}},
			&cli.BoolFlag{Name: "use_sqlite", Value: true, Usage: "store outcomes in sqlite instead of mysql", EnvVars: []string{"USE_SQLITE"}},
			&cli.StringFlag{Name: "sqlite_dir", Value: "./data/sqlite", Usage: "sqlite db dir path", EnvVars: []string{"SQLITE_DIR"}},
			&cli.StringFlag{Name: "mysql", Value: "root@tcp(127.0.0.1:3306)/b3cverify?charset=utf8mb4&parseTime=True&loc=Local", Usage: "mysql dsn", EnvVars: []string{"MYSQL"}},

			&cli.BoolFlag{Name: "kafka_start", Value: false, Usage: "publish outcomes to kafka", EnvVars: []string{"KAFKA_START"}},
			&cli.StringFlag{Name: "kafka_uri", Value: "127.0.0.1:9092", EnvVars: []string{"KAFKA_URI"}},

			&cli.IntFlag{Name: "max_retries", Value: schema.DefaultMaxRetries, EnvVars: []string{"MAX_RETRIES"}},
			&cli.DurationFlag{Name: "poll_interval", Value: schema.DefaultPollInterval, EnvVars: []string{"POLL_INTERVAL"}},
			&cli.DurationFlag{Name: "window", Value: schema.DefaultWindow, Usage: "verification window per payment", EnvVars: []string{"WINDOW"}},
			&cli.DurationFlag{Name: "cooldown", Value: schema.DefaultCooldown, Usage: "lockout after the retry budget is spent", EnvVars: []string{"COOLDOWN"}},
			&cli.IntFlag{Name: "tx_page_limit", Value: schema.DefaultTxPageLimit, EnvVars: []string{"TX_PAGE_LIMIT"}},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	if dsn := c.String("sentry_dsn"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			return err
		}
	}

	s := b3cverify.New(schema.Config{
		ApiUrl:        c.String("api_url"),
		InitData:      c.String("init_data"),
		Account:       c.String("account"),
		Port:          c.String("port"),
		MetricPort:    c.String("metric_port"),
		SentryDsn:     c.String("sentry_dsn"),
		RateWhitelist: c.StringSlice("rate_whitelist"),
		BoltDir:       c.String("bolt_dir"),
		UseSqlite:     c.Bool("use_sqlite"),
		SqliteDir:     c.String("sqlite_dir"),
		Mysql:         c.String("mysql"),
		Kafka:         schema.Kafka{Start: c.Bool("kafka_start"), Uri: c.String("kafka_uri")},
		MaxRetries:    c.Int("max_retries"),
		PollInterval:  c.Duration("poll_interval"),
		Window:        c.Duration("window"),
		Cooldown:      c.Duration("cooldown"),
		TxPageLimit:   c.Int("tx_page_limit"),
	})
	s.Run()

	<-signals
	s.Close()

	return nil
}
