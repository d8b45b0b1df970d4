package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LdDl/headcount/internal/api"
	"github.com/LdDl/headcount/internal/config"
	"github.com/LdDl/headcount/internal/detect"
	"github.com/LdDl/headcount/internal/monitoring"
	"github.com/LdDl/headcount/internal/proof"
	"github.com/LdDl/headcount/internal/session"
	"github.com/LdDl/headcount/internal/store"
	"github.com/LdDl/headcount/internal/vision"
	"github.com/pkg/errors"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <run|serve> [flags]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "  run    count objects in a video window and print result as JSON")
	fmt.Fprintln(os.Stderr, "  serve  start HTTP API")
	fmt.Fprintln(os.Stderr, "Defaults are read from HEADCOUNT_* environment variables and .env file")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var cmdErr error
	switch os.Args[1] {
	case "run":
		cmdErr = runCommand(cfg, os.Args[2:])
	case "serve":
		cmdErr = serveCommand(cfg, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		monitoring.Logger.WithError(cmdErr).Error("headcount failed")
		os.Exit(1)
	}
}

// bindFlags registers flags overriding configuration values
func bindFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.VideoPath, "video", cfg.VideoPath, "Path to video file")
	fs.StringVar(&cfg.ProofDir, "proof-dir", cfg.ProofDir, "Directory for proof images")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to sqlite session ledger. Empty disables ledger")
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to ONNX detector model")
	fs.StringVar(&cfg.DetectorURL, "detector-url", cfg.DetectorURL, "URL of external inference service. Overrides -model")
	fs.Float64Var(&cfg.Seconds, "seconds", cfg.Seconds, "Window duration in seconds")
	fs.Float64Var(&cfg.StartTimeSec, "start", cfg.StartTimeSec, "Window start offset in seconds")
	fs.IntVar(&cfg.SubsampleEvery, "every", cfg.SubsampleEvery, "Run detection on every Nth frame")
	fs.IntVar(&cfg.MaxDisappeared, "max-disappeared", cfg.MaxDisappeared, "Frames an object may stay unmatched before deregistration")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Frames detected concurrently")
	fs.Float64Var(&cfg.ConfThreshold, "conf", cfg.ConfThreshold, "Detector confidence threshold")
	fs.IntVar(&cfg.ImageSize, "imgsz", cfg.ImageSize, "Detector input size")
	fs.IntVar(&cfg.ClassID, "class", cfg.ClassID, "Target class id")
	fs.StringVar(&cfg.Label, "label", cfg.Label, "Target class label")
	fs.BoolVar(&cfg.CountsChart, "chart", cfg.CountsChart, "Store counts-per-frame chart next to proof")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
}

func parseFlags(name string, cfg *config.Config, args []string, extra func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	bindFlags(fs, cfg)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := monitoring.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return err
}

type closer interface {
	Close() error
}

func newDetector(cfg *config.Config) (detect.Detector, closer, error) {
	if cfg.DetectorURL != "" {
		return detect.NewHTTPDetector(cfg.DetectorURL, cfg.ClassID, cfg.ConfThreshold, cfg.ImageSize), nil, nil
	}
	detector, err := vision.NewYOLODetector(cfg.ModelPath, cfg.ClassID, cfg.ConfThreshold, cfg.ImageSize)
	if err != nil {
		return nil, nil, err
	}
	return detector, detector, nil
}

func openLedger(cfg *config.Config) (*store.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	return store.Open(cfg.DBPath)
}

type runOutput struct {
	SessionID             string        `json:"session_id"`
	RobustCount           int           `json:"robust_count"`
	CountsPerFrame        []int         `json:"counts_per_frame"`
	UniqueTrackedIDsCount int           `json:"unique_tracked_ids_count"`
	ProofImagePath        *string       `json:"proof_image_path"`
	Proof                 *proof.Record `json:"proof"`
	Stats                 session.Stats `json:"stats"`
}

func runCommand(cfg *config.Config, args []string) error {
	if err := parseFlags("run", cfg, args, nil); err != nil {
		return err
	}
	detector, detectorCloser, err := newDetector(cfg)
	if err != nil {
		return err
	}
	if detectorCloser != nil {
		defer detectorCloser.Close()
	}
	runner, err := session.NewRunner(vision.Opener(cfg.VideoPath), detector, cfg.SessionOptions())
	if err != nil {
		return err
	}
	writer, err := proof.NewWriter(cfg.ProofDir, cfg.CountsChart)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	output := runOutput{
		SessionID:             result.SessionID.String(),
		RobustCount:           result.RobustCount,
		CountsPerFrame:        result.CountsPerFrame,
		UniqueTrackedIDsCount: result.UniqueLifetimeIDCount,
		Proof:                 result.ProofRecord,
		Stats:                 result.Stats,
	}
	if result.ProofImage != nil {
		imagePath, err := writer.Write(result.ProofImage, result.ProofRecord)
		if err != nil {
			return err
		}
		output.ProofImagePath = &imagePath
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer ledger.Close()
		if err := ledger.Insert(ctx, store.NewSessionRecord(result, cfg.VideoPath, time.Now())); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(output), "can't print result")
}

func serveCommand(cfg *config.Config, args []string) error {
	if err := parseFlags("serve", cfg, args, func(fs *flag.FlagSet) {
		fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	}); err != nil {
		return err
	}
	detector, detectorCloser, err := newDetector(cfg)
	if err != nil {
		return err
	}
	if detectorCloser != nil {
		defer detectorCloser.Close()
	}
	runner, err := session.NewRunner(vision.Opener(cfg.VideoPath), detector, cfg.SessionOptions())
	if err != nil {
		return err
	}
	writer, err := proof.NewWriter(cfg.ProofDir, cfg.CountsChart)
	if err != nil {
		return err
	}
	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var sessions api.Ledger
	if ledger != nil {
		defer ledger.Close()
		sessions = ledger
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(runner.Run, writer, sessions, cfg.VideoPath).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		monitoring.Logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		serveErr <- srv.ListenAndServe()
	}()
	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}
	monitoring.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "can't shutdown http server")
}
