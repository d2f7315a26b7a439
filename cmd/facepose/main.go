// facepose - reads a camera, detects the primary face with YuNet and logs
// its roll, pitch and yaw
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facesense/internal/config"
	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/detection"
	"github.com/teslashibe/go-facesense/pkg/metrics"
)

func main() {
	path := flag.String("config", "", "Path to YAML config file")
	camera := flag.Int("camera", -1, "Camera device index (overrides config)")
	model := flag.String("model", "", "YuNet ONNX model path (overrides config)")
	interval := flag.Duration("interval", 200*time.Millisecond, "Minimum time between pose logs")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.InitWith(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	if *camera >= 0 {
		cfg.Detector.Camera = *camera
	}
	if *model != "" {
		cfg.Detector.ModelPath = *model
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg.Detector, *interval); err != nil {
		log.Error("facepose stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.DetectorConfig, interval time.Duration) error {
	dcfg := detection.DefaultConfig()
	dcfg.ModelPath = cfg.ModelPath
	if cfg.Confidence > 0 {
		dcfg.ConfidenceThresh = cfg.Confidence
	}

	detector, err := detection.NewYuNet(dcfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	webcam, err := gocv.OpenVideoCapture(cfg.Camera)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", cfg.Camera, err)
	}
	defer webcam.Close()

	log.Info("facepose running", "camera", cfg.Camera, "model", dcfg.ModelPath)

	frame := gocv.NewMat()
	defer frame.Close()

	var last time.Time
	for ctx.Err() == nil {
		if !webcam.Read(&frame) || frame.Empty() {
			log.Warn("camera returned no frame")
			time.Sleep(100 * time.Millisecond)
			continue
		}

		dets, err := detector.DetectMat(frame)
		if err != nil {
			log.Warn("detection failed", "error", err)
			continue
		}

		best := detection.SelectBest(dets)
		if best == nil || time.Since(last) < interval {
			continue
		}
		last = time.Now()

		pose := metrics.HeadPoseFromPoints(best.PosePoints())
		log.Info("pose",
			"faces", len(dets),
			"confidence", fmt.Sprintf("%.2f", best.Confidence),
			"roll", fmt.Sprintf("%.1f", pose.Roll),
			"pitch", fmt.Sprintf("%.1f", pose.Pitch),
			"yaw", fmt.Sprintf("%.1f", pose.Yaw),
		)
	}
	return nil
}
