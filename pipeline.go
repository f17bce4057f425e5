package beltvision

import (
	"context"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/swdee/go-beltvision/calibrate"
	"github.com/swdee/go-beltvision/config"
	"github.com/swdee/go-beltvision/detect"
	"github.com/swdee/go-beltvision/predict"
	"github.com/swdee/go-beltvision/preprocess"
	"github.com/swdee/go-beltvision/store"
	"github.com/swdee/go-beltvision/tracker"
	"gocv.io/x/gocv"
	"image"
	"io"
	"time"
)

// ErrStop is returned by a FrameHandler to end a run early without error
var ErrStop = errors.New("stop requested")

// FrameSource supplies frames one at a time, Read returns false once the
// source is exhausted.  gocv.VideoCapture satisfies this interface.
type FrameSource interface {
	Read(m *gocv.Mat) bool
}

// FrameHandler is called after every processed frame with the frame as
// detected on, eg: to render the tracked objects.  Returning ErrStop ends the
// run.
type FrameHandler func(frame gocv.Mat, res FrameResult) error

// FrameResult is the outcome of processing a single frame
type FrameResult struct {
	// Frame is the frame number, starting at 1
	Frame int
	// Observations is the number of objects detected
	Observations int
	// Updates holds the identities touched this frame in ascending ID order
	Updates []tracker.Update
	// Persisted holds the records written to the store this frame
	Persisted []store.Record
	// Dropped counts records the store failed to write
	Dropped int
	// Ambiguous counts observations that displaced an earlier match of the
	// same identity
	Ambiguous int
	// Evicted lists identities the tracker dropped this frame
	Evicted []int
}

// Params defines the stages of a Pipeline
type Params struct {
	// PPM is the calibrated pixels per meter scale
	PPM float64
	// ROI is the belt band mask applied to every frame, the Pipeline takes
	// ownership of it.  An empty Mat from gocv.NewMat() searches whole
	// frames.
	ROI gocv.Mat
	// Resizer scales frames to the ROI resolution, nil leaves frames as read
	Resizer *preprocess.Resizer
	// Detector extracts observations from frames
	Detector *detect.Detector
	// Tracker associates observations with identities
	Tracker *tracker.Tracker
	// Predictor extrapolates positions for actuator latency
	Predictor *predict.Predictor
	// Store persists object records
	Store store.Store
	// Logger receives pipeline events, defaults to discarding them
	Logger logrus.FieldLogger
	// Now returns record timestamps, defaults to time.Now
	Now func() time.Time
}

// Pipeline processes frames sequentially, each frame is fully detected,
// tracked and persisted before the next is accepted
type Pipeline struct {
	ppm       float64
	roi       gocv.Mat
	resizer   *preprocess.Resizer
	scaled    gocv.Mat
	detector  *detect.Detector
	tracker   *tracker.Tracker
	predictor *predict.Predictor
	store     store.Store
	log       logrus.FieldLogger
	now       func() time.Time
	frame     int
}

// NewPipeline returns a Pipeline built from the given stages
func NewPipeline(p Params) (*Pipeline, error) {

	if p.PPM <= 0 {
		return nil, fmt.Errorf("pixels per meter must be positive, got %v", p.PPM)
	}

	if p.Tracker == nil || p.Predictor == nil || p.Store == nil {
		return nil, errors.New("tracker, predictor and store are required")
	}

	if p.Detector == nil {
		p.Detector = detect.NewDetector(detect.DefaultParams())
	}

	if p.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.Logger = l
	}

	if p.Now == nil {
		p.Now = time.Now
	}

	return &Pipeline{
		ppm:       p.PPM,
		roi:       p.ROI,
		resizer:   p.Resizer,
		scaled:    gocv.NewMat(),
		detector:  p.Detector,
		tracker:   p.Tracker,
		predictor: p.Predictor,
		store:     p.Store,
		log:       p.Logger,
		now:       p.Now,
	}, nil
}

// NewFromConfig calibrates from the configured reference image, builds the
// belt band mask, opens and initializes the configured store and returns the
// Pipeline ready to process frames
func NewFromConfig(cfg *config.Config, log logrus.FieldLogger) (*Pipeline, error) {

	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	cal, frameSize, err := calibrate.CalibrateFile(cfg.CalibrationImagePath,
		cfg.ReferenceRect(), cfg.Threshold())

	if err != nil {
		return nil, fmt.Errorf("error calibrating: %w", err)
	}

	log.WithFields(logrus.Fields{
		"ppm":      cal.PPM,
		"width_px": cal.WidthPx,
	}).Info("Calibrated pixels per meter")

	y1, y2 := calibrate.BeltBand(cal.PPM, cfg.BeltWidth, cfg.BorderWidth, cfg.Baseline())

	log.WithFields(logrus.Fields{
		"y1": y1,
		"y2": y2,
	}).Info("Belt region of interest")

	st, err := store.Open(store.Backend(cfg.Store.Backend), cfg.OutputPath, cfg.Store.Atomic)

	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}

	if err := st.Init(); err != nil {
		st.Close()
		return nil, fmt.Errorf("error initializing store: %w", err)
	}

	p, err := NewPipeline(Params{
		PPM:       cal.PPM,
		ROI:       calibrate.BeltMask(frameSize, y1, y2),
		Resizer:   preprocess.NewResizer(frameSize.X, frameSize.Y),
		Detector:  detect.NewDetector(cfg.DetectParams()),
		Tracker:   tracker.NewTracker(cfg.TrackerOptions()),
		Predictor: predict.NewPredictor(cfg.BeltSpeed, cfg.FPS, cfg.Delay),
		Store:     st,
		Logger:    log,
	})

	if err != nil {
		st.Close()
		return nil, err
	}

	return p, nil
}

// PPM returns the calibrated pixels per meter
func (p *Pipeline) PPM() float64 {
	return p.ppm
}

// Tracker returns the pipeline's tracker
func (p *Pipeline) Tracker() *tracker.Tracker {
	return p.tracker
}

// Store returns the pipeline's store
func (p *Pipeline) Store() store.Store {
	return p.store
}

// ProcessFrame detects the objects in frame and applies them.  Frames of a
// different size to the region of interest mask are first scaled to it when
// the Pipeline has a Resizer.
func (p *Pipeline) ProcessFrame(frame gocv.Mat) (FrameResult, error) {

	_, res, err := p.process(frame)
	return res, err
}

// process runs a frame through the pipeline returning the frame actually
// detected on
func (p *Pipeline) process(frame gocv.Mat) (gocv.Mat, FrameResult, error) {

	img := frame

	if p.resizer != nil && !p.resizer.Matches(frame) {
		p.resizer.Resize(frame, &p.scaled)
		img = p.scaled
	}

	obs, err := p.detector.Detect(img, p.roi)

	if err != nil {
		return img, FrameResult{}, fmt.Errorf("error detecting objects: %w", err)
	}

	res, err := p.Apply(image.Pt(img.Cols(), img.Rows()), obs)

	return img, res, err
}

// Apply tracks the observations of a frame of the given size and persists
// the predicted pose of every identity inside the view window.  A record the
// store fails to write is logged and dropped, it does not fail the frame.
func (p *Pipeline) Apply(size image.Point, obs []detect.Observation) (FrameResult, error) {

	p.frame++

	res := FrameResult{
		Frame:        p.frame,
		Observations: len(obs),
	}

	tr, err := p.tracker.Update(tracker.ObservationsToObjects(obs))

	if err != nil {
		return res, fmt.Errorf("error tracking frame %d: %w", p.frame, err)
	}

	res.Ambiguous = tr.Ambiguous
	res.Evicted = tr.Evicted

	if tr.Ambiguous > 0 {
		p.log.WithFields(logrus.Fields{
			"frame": p.frame,
			"count": tr.Ambiguous,
		}).Warn("Observations displaced earlier matches of the same identity")
	}

	ts := p.now()

	for _, id := range tr.IDs() {
		upd := tr.Updates[id]
		res.Updates = append(res.Updates, upd)

		if !predict.InViewWindow(upd.X, size.X) {
			continue
		}

		x, y := calibrate.PixelToMetric(size, image.Pt(upd.X, upd.Y), p.ppm)
		px, py := p.predictor.Predict(x, y)

		rec := store.NewRecord(id, x, upd.Angle, px, py, upd.Label, ts)

		if err := p.store.Upsert(rec); err != nil {
			p.log.WithFields(logrus.Fields{
				"frame":     p.frame,
				"object_id": id,
				"error":     err,
			}).Warn("Dropped object update")

			res.Dropped++
			continue
		}

		res.Persisted = append(res.Persisted, rec)
	}

	if err := p.store.Flush(); err != nil {
		p.log.WithFields(logrus.Fields{
			"frame":   p.frame,
			"dropped": len(res.Persisted),
			"error":   err,
		}).Warn("Error flushing object records")

		// nothing upserted this frame reached storage
		res.Dropped += len(res.Persisted)
		res.Persisted = nil
	}

	p.log.WithFields(logrus.Fields{
		"frame":        p.frame,
		"observations": res.Observations,
		"tracked":      len(res.Updates),
		"persisted":    len(res.Persisted),
		"dropped":      res.Dropped,
	}).Debug("Processed frame")

	return res, nil
}

// Run processes frames from src until it is exhausted, ctx is cancelled or
// handle returns ErrStop.  Cancellation is observed between frames, records
// persisted before it remain persisted.  The number of frames processed is
// returned.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, handle FrameHandler) (int, error) {

	img := gocv.NewMat()
	defer img.Close()

	count := 0

	for {
		select {
		case <-ctx.Done():
			p.log.WithField("frames", count).Info("Run cancelled")
			return count, ctx.Err()
		default:
		}

		if ok := src.Read(&img); !ok {
			p.log.WithField("frames", count).Info("Frame source exhausted")
			return count, nil
		}

		if img.Empty() {
			continue
		}

		processed, res, err := p.process(img)

		if err != nil {
			return count, err
		}

		count++

		if handle == nil {
			continue
		}

		if err := handle(processed, res); err != nil {
			if errors.Is(err, ErrStop) {
				return count, nil
			}
			return count, err
		}
	}
}

// Close flushes and closes the store and releases the region of interest
// mask
func (p *Pipeline) Close() error {

	p.roi.Close()
	p.scaled.Close()

	if err := p.store.Close(); err != nil {
		return fmt.Errorf("error closing store: %w", err)
	}

	return nil
}
