package main

import (
	"context"
	"errors"
	"github.com/dancavallaro/serial2influx/pkg/logging"
	"github.com/dancavallaro/serial2influx/pkg/serialreader"
	"github.com/spf13/pflag"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var version = "dev"

type recordSource interface {
	ReadRecord(ctx context.Context) ([]byte, error)
}

// readAndLog logs every record and its parsed reading until ctx is cancelled
// or the port fails. It returns the number of records seen.
func readAndLog(ctx context.Context, src recordSource, log *logging.Logger) (int, error) {
	count := 0
	for {
		record, err := src.ReadRecord(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, serialreader.ErrClosed) {
				return count, nil
			}
			return count, err
		}
		count++
		log.Info("record",
			"raw", strings.TrimRight(string(record), "\r\n"),
			"value", serialreader.ParseReading(record))
	}
}

func main() {
	device := pflag.StringP("device", "d", "", "serial device to read from")
	bootDelay := pflag.Duration("boot-delay", serialreader.DefaultBootDelay, "wait after opening for the board to reset")
	logFormat := pflag.String("log-format", "text", "log format: json, text")
	pflag.Parse()

	log := logging.New(logging.Config{Level: "info", Format: *logFormat, Output: "stdout"}, version).
		With("component", "serial_logger")

	if *device == "" {
		log.Error("must specify path to device")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reader, err := serialreader.Open(ctx, serialreader.Config{Device: *device, BootDelay: *bootDelay})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("opening device", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	n, err := readAndLog(ctx, reader, log)
	log.Info("stopped", "records", n)
	if err != nil {
		log.Error("reading device", "error", err)
		reader.Close()
		os.Exit(1)
	}
}
