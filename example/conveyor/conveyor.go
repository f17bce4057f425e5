package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/swdee/go-beltvision"
	"github.com/swdee/go-beltvision/calibrate"
	"github.com/swdee/go-beltvision/config"
	"github.com/swdee/go-beltvision/render"
	"github.com/swdee/go-beltvision/tracker"
	"gocv.io/x/gocv"
	"image"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configFile := flag.String("c", "config.yaml", "YAML configuration file")
	show := flag.Bool("show", false, "Display annotated frames in a window, press q to quit")
	logLevel := flag.String("log-level", "info", "Logging level [debug|info|warn|error]")
	logJSON := flag.Bool("log-json", false, "Log in JSON format")
	flag.Parse()

	log := logrus.New()

	level, err := logrus.ParseLevel(*logLevel)

	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	log.SetLevel(level)

	if *logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.Load(*configFile)

	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// stop between frames on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *show, log); err != nil {
		log.Fatalf("Error running pipeline: %v", err)
	}
}

// run processes the configured video until it ends or ctx is cancelled
func run(ctx context.Context, cfg *config.Config, show bool, log *logrus.Logger) error {

	pipeline, err := beltvision.NewFromConfig(cfg, log)

	if err != nil {
		return err
	}

	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Errorf("Error closing pipeline: %v", err)
		}
	}()

	video, err := gocv.VideoCaptureFile(cfg.VideoPath)

	if err != nil {
		return fmt.Errorf("error opening video %s: %w", cfg.VideoPath, err)
	}

	defer video.Close()

	var handle beltvision.FrameHandler

	if show {
		window := gocv.NewWindow("Conveyor")
		defer window.Close()

		// create Mat for annotated image
		resImg := gocv.NewMat()
		defer resImg.Close()

		handle = annotator(window, &resImg, newAnnotation(pipeline, cfg))
	}

	count, err := pipeline.Run(ctx, video, handle)

	if errors.Is(err, context.Canceled) {
		log.Infof("Stopped after %d frames", count)
		return nil
	}

	if err != nil {
		return err
	}

	log.Infof("Processed %d frames", count)
	return nil
}

// annotation draws the belt band, tracked objects and their trails
type annotation struct {
	y1, y2  int
	font    render.Font
	style   render.TrailStyle
	tracker *tracker.Tracker
}

// newAnnotation returns the annotation for the pipeline's calibrated belt band
func newAnnotation(pipeline *beltvision.Pipeline, cfg *config.Config) *annotation {

	y1, y2 := calibrate.BeltBand(pipeline.PPM(), cfg.BeltWidth, cfg.BorderWidth, cfg.Baseline())

	return &annotation{
		y1:      y1,
		y2:      y2,
		font:    render.DefaultFont(),
		style:   render.DefaultTrailStyle(),
		tracker: pipeline.Tracker(),
	}
}

// draw copies frame into dst and annotates the copy.  The caller owns dst.
func (a *annotation) draw(dst *gocv.Mat, frame gocv.Mat, res beltvision.FrameResult) {

	frame.CopyTo(dst)

	render.Band(dst, a.y1, a.y2, 1)
	render.Trail(dst, a.tracker.IDs(), a.tracker.Trail(), a.style)
	render.Tracks(dst, res.Updates, a.font, 4)

	text := fmt.Sprintf("Frame: %d  Objects: %d  Stored: %d", res.Frame,
		len(res.Updates), len(res.Persisted))
	gocv.PutTextWithParams(dst, text, image.Pt(10, 20),
		a.font.Face, a.font.Scale, render.White, a.font.Thickness, a.font.LineType, false)
}

// annotator returns a FrameHandler which annotates every frame onto resImg
// and shows it in window.  Pressing q stops the run.
func annotator(window *gocv.Window, resImg *gocv.Mat, ann *annotation) beltvision.FrameHandler {

	return func(frame gocv.Mat, res beltvision.FrameResult) error {

		ann.draw(resImg, frame, res)
		window.IMShow(*resImg)

		if window.WaitKey(1) == 'q' {
			return beltvision.ErrStop
		}

		return nil
	}
}
