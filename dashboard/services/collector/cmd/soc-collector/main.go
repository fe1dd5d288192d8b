package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"socdash/dashboard/libs/logging"
	"socdash/dashboard/services/collector/internal/capture"
)

var version = "<not set>"

type Args struct {
	Port  string `arg:"--port" help:"Serial port of the sensor board" default:"COM3"`
	Baud  int    `arg:"--baud" help:"Serial baud rate, must match the board" default:"9600"`
	Out   string `arg:"--out" help:"Raw log, appended across reconnects" default:"raw_data_temp.csv"`
	Final string `arg:"--final" help:"Training CSV written on stop" default:"battery_drain_test.csv"`
}

func (Args) Version() string {
	return version
}

func (Args) Description() string {
	return "Records a battery drain test from the serial sensor board. Press Ctrl+C when the battery is empty."
}

func main() {
	var args Args
	arg.MustParse(&args)

	logger, err := logging.NewLogger("soc-collector")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("recording drain test",
		zap.String("port", args.Port),
		zap.Int("baud", args.Baud),
		zap.String("out", args.Out),
	)
	recorder := capture.NewRecorder(args.Out, capture.SerialOpener(args.Port, args.Baud), logger)
	if err := recorder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("recording failed", zap.Error(err))
	}

	logger.Info("stopping test, calculating SoC")
	summary, err := capture.Finalize(args.Out, args.Final)
	if err != nil {
		logger.Error("failed to finalize drain test", zap.Error(err))
		return
	}
	logger.Info("drain test saved",
		zap.String("file", args.Final),
		zap.Int("rows", summary.Rows),
		zap.Duration("duration", summary.Duration),
	)
}
