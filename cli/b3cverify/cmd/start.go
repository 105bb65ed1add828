package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/everFinance/b3cverify"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
)

const pidFile string = ".b3cverify_pid.lock"

var daemon bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start b3cverify",
	Long:  `start b3cverify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !daemon {
			return runServer()
		}
		if _, err := os.Stat(pidFile); err == nil {
			fmt.Println("Failed start, PID file exist.running...")
			return nil
		}

		path, err := os.Executable()
		if err != nil {
			return err
		}
		args = []string{"start"}
		if cfgFile != "" {
			args = append(args, "--cfg", cfgFile)
		}
		command := exec.Command(path, args...)

		logFileName := fmt.Sprintf("b3cverify_%d.log", time.Now().Unix())
		logFile, err := os.OpenFile(logFileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			return err
		}
		command.Stdout = logFile
		command.Stderr = logFile

		if err := command.Start(); err != nil {
			return err
		}
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", command.Process.Pid)), 0666); err != nil {
			return err
		}
		os.Exit(0)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVarP(&daemon, "daemon", "d", false, "run in background")
}

func runServer() error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	if cfg.SentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDsn}); err != nil {
			return err
		}
	}

	s := b3cverify.New(cfg)
	s.Run()

	<-signals
	s.Close()
	return nil
}
