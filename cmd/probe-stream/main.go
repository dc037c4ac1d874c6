package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/surfvision/camtuner/internal/analysis"
	"github.com/surfvision/camtuner/internal/camera"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/video"
)

func main() {
	var (
		url     string
		timeout time.Duration
		packets int
	)
	flag.StringVar(&url, "url", "", "RTSP URL to probe (required)")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Connect/read timeout")
	flag.IntVar(&packets, "packets", 30, "Per-stream probe packet budget")
	flag.Parse()

	if url == "" {
		fmt.Fprintln(os.Stderr, "Usage: probe-stream -url rtsp://camera/live_stream")
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	src := camera.NewSource(camera.SourceConfig{
		URL:             url,
		ConnectTimeout:  timeout,
		ReadTimeout:     timeout,
		MaxProbePackets: packets,
	}, log)

	fmt.Printf("Connecting to %s...\n", url)
	if err := src.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connect failed: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	fmt.Printf("Selected stream %d via %s\n", src.SelectedStream(), src.Method())

	fmt.Println("Waiting for a key frame...")
	annexB, err := src.CaptureKeyFrame(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Key frame capture failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Key frame: %d bytes\n", len(annexB))

	decoder, err := video.NewDecoder(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffmpeg not found: %v\n", err)
		os.Exit(1)
	}

	frame, err := decoder.DecodeKeyFrame(ctx, annexB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Decoded frame: %dx%d\n", frame.Width, frame.Height)

	luma := frame.Luma()
	exposure := analysis.NewExposureAnalyzer(128).AnalyzeGray(luma, frame.Width, frame.Height)
	focus := analysis.NewFocusAnalyzer().Analyze(luma, frame.Width, frame.Height)

	fmt.Println()
	fmt.Printf("Mean brightness:  %.1f\n", exposure.MeanBrightness)
	fmt.Printf("Contrast:         %.1f\n", exposure.Contrast)
	fmt.Printf("Highlight clip:   %.2f%%\n", exposure.ClippedHighlights)
	fmt.Printf("Shadow clip:      %.2f%%\n", exposure.ClippedShadows)
	fmt.Printf("Exposure score:   %.1f\n", exposure.Score)
	fmt.Printf("Sharpness:        %.1f\n", focus.Sharpness)
	fmt.Printf("Focus score:      %.1f\n", focus.Score)
}
