package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/dancavallaro/serial2influx/pkg/bridge"
	"github.com/dancavallaro/serial2influx/pkg/config"
	"github.com/dancavallaro/serial2influx/pkg/logging"
	"github.com/dancavallaro/serial2influx/pkg/publish"
	"github.com/dancavallaro/serial2influx/pkg/serialreader"
	"github.com/spf13/pflag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

type flags struct {
	help        bool
	configPath  string
	port        string
	num         int
	measurement string
	url         string
	logLevel    string
	logFormat   string
	bootDelay   time.Duration
	timeout     time.Duration
	mqttBroker  string
	mqttTopic   string
	cloudwatch  bool
	cwNamespace string
	cwRegion    string
}

func newFlagSet(f *flags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("serial2influx", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	fs.BoolVarP(&f.help, "help", "h", false, "Print this help message")
	fs.StringVarP(&f.port, "port", "p", "", "Serial port the board is on")
	fs.IntVarP(&f.num, "num", "n", 0, "Number of readings to send; 0 means infinite")
	fs.StringVarP(&f.measurement, "measurement", "m", "", "Measurement name and tags, e.g. name,key=value,...")
	fs.StringVarP(&f.url, "url", "u", "", "Complete write address, e.g. http://host:8086/write?db=mydb")
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json, text")
	fs.DurationVar(&f.bootDelay, "boot-delay", serialreader.DefaultBootDelay, "Wait after opening the port for the board to reset")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-request HTTP timeout; 0 waits indefinitely")
	fs.StringVar(&f.mqttBroker, "mqtt-broker", "", "Also mirror points to this MQTT broker")
	fs.StringVar(&f.mqttTopic, "mqtt-topic", "", "MQTT topic prefix for mirrored points")
	fs.BoolVar(&f.cloudwatch, "cloudwatch", false, "Also mirror points to CloudWatch")
	fs.StringVar(&f.cwNamespace, "cloudwatch-namespace", "", "CloudWatch namespace for mirrored points")
	fs.StringVar(&f.cwRegion, "cloudwatch-region", "", "CloudWatch region")
	return fs
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: serial2influx -p <serialport> -m <name,key=value,...> -u <url> [options]\n\nOptions:\n%s\n", fs.FlagUsages())
}

// run returns the process exit code: 0 for help, completion or interrupt and
// 1 for everything else.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f flags
	fs := newFlagSet(&f)

	if len(args) == 0 {
		printUsage(stdout, fs)
		return 0
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, fs)
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stdout, fs)
		return 1
	}
	if f.help {
		printUsage(stdout, fs)
		return 0
	}
	if rest := fs.Args(); len(rest) > 0 {
		fmt.Fprintf(stderr, "error: unexpected argument: %s\n", rest[0])
		printUsage(stdout, fs)
		return 1
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	applyFlags(cfg, fs, &f)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: invalid configuration: %v\n", err)
		return 1
	}

	log := logging.NewWithWriter(cfg.Logging, version, logOutput(cfg.Logging, stdout, stderr))

	loop := bridge.New(bridge.Options{
		Port:          cfg.Serial.Port,
		Measurement:   cfg.Measurement,
		URL:           cfg.URL,
		Num:           cfg.Num,
		OpenSource:    openSource(cfg),
		InitPublisher: initPublisher(cfg),
		InitMirrors:   initMirrors(cfg, log),
		Logger:        log,
	})

	err = loop.Run(ctx)
	var argErr *bridge.ArgumentError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &argErr):
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stdout, fs)
		return 1
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

// applyFlags overlays only the flags the operator actually passed.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet, f *flags) {
	if fs.Changed("port") {
		cfg.Serial.Port = f.port
	}
	if fs.Changed("num") {
		cfg.Num = f.num
	}
	if fs.Changed("measurement") {
		cfg.Measurement = f.measurement
	}
	if fs.Changed("url") {
		cfg.URL = f.url
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if fs.Changed("boot-delay") {
		cfg.Serial.BootDelay = f.bootDelay
	}
	if fs.Changed("timeout") {
		cfg.Publish.Timeout = f.timeout
	}
	if fs.Changed("mqtt-broker") {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = f.mqttBroker
	}
	if fs.Changed("mqtt-topic") {
		cfg.MQTT.TopicPrefix = f.mqttTopic
	}
	if fs.Changed("cloudwatch") {
		cfg.CloudWatch.Enabled = f.cloudwatch
	}
	if fs.Changed("cloudwatch-namespace") {
		cfg.CloudWatch.Namespace = f.cwNamespace
	}
	if fs.Changed("cloudwatch-region") {
		cfg.CloudWatch.Region = f.cwRegion
	}
}

func logOutput(cfg logging.Config, stdout, stderr io.Writer) io.Writer {
	if strings.EqualFold(cfg.Output, "stdout") {
		return stdout
	}
	return stderr
}

func openSource(cfg *config.Config) func(context.Context, string) (bridge.Source, error) {
	return func(ctx context.Context, port string) (bridge.Source, error) {
		reader, err := serialreader.Open(ctx, serialreader.Config{
			Device:    port,
			BootDelay: cfg.Serial.BootDelay,
		})
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
}

func initPublisher(cfg *config.Config) func() (bridge.Publisher, error) {
	return func() (bridge.Publisher, error) {
		session, err := publish.Init(publish.Options{Timeout: cfg.Publish.Timeout})
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

func initMirrors(cfg *config.Config, log *logging.Logger) func(context.Context) ([]publish.Mirror, error) {
	return func(ctx context.Context) ([]publish.Mirror, error) {
		var mirrors []publish.Mirror

		if cfg.MQTT.Enabled {
			mqttLog := log.With("component", "mqtt")
			m, err := publish.NewMQTTMirror(publish.MQTTMirrorConfig{
				BrokerAddress: cfg.MQTT.Broker,
				Username:      cfg.MQTT.Username,
				Password:      cfg.MQTT.Password,
				TopicPrefix:   cfg.MQTT.TopicPrefix,
				QoS:           byte(cfg.MQTT.QoS),
				Logger:        slog.NewLogLogger(mqttLog.Handler(), slog.LevelWarn),
			})
			if err != nil {
				return mirrors, err
			}
			mirrors = append(mirrors, m)
			mqttLog.Info("mirroring to MQTT", "broker", cfg.MQTT.Broker, "topic_prefix", cfg.MQTT.TopicPrefix)
		}

		if cfg.CloudWatch.Enabled {
			m, err := publish.NewCloudWatchMirror(ctx, publish.CloudWatchMirrorConfig{
				Region:    cfg.CloudWatch.Region,
				Namespace: cfg.CloudWatch.Namespace,
			})
			if err != nil {
				return mirrors, err
			}
			mirrors = append(mirrors, m)
			log.Info("mirroring to CloudWatch", "component", "cloudwatch", "namespace", cfg.CloudWatch.Namespace)
		}

		return mirrors, nil
	}
}
