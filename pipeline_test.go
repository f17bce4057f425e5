package beltvision

import (
	"context"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-beltvision/calibrate"
	"github.com/swdee/go-beltvision/config"
	"github.com/swdee/go-beltvision/detect"
	"github.com/swdee/go-beltvision/predict"
	"github.com/swdee/go-beltvision/preprocess"
	"github.com/swdee/go-beltvision/store"
	"github.com/swdee/go-beltvision/tracker"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"
)

var (
	lightRed  = color.RGBA{R: 255, G: 150, B: 150, A: 255}
	lightBlue = color.RGBA{R: 150, G: 150, B: 255, A: 255}
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	fixedTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

const (
	frameWidth  = 640
	frameHeight = 480
)

// memStore is an in-memory store which fails upserts for selected objects
// and optionally every flush
type memStore struct {
	records   []store.Record
	fail      map[int]bool
	failFlush bool
	flushes   int
}

func (m *memStore) Init() error {
	m.records = nil
	return nil
}

func (m *memStore) Upsert(rec store.Record) error {

	if m.fail[rec.ObjectID] {
		return fmt.Errorf("%w: permission denied", store.ErrPersistence)
	}

	for i := range m.records {
		if m.records[i].ObjectID == rec.ObjectID {
			m.records[i] = rec
			return nil
		}
	}

	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Flush() error {

	m.flushes++

	if m.failFlush {
		return fmt.Errorf("%w: disk full", store.ErrPersistence)
	}

	return nil
}

func (m *memStore) Records() ([]store.Record, error) {
	return m.records, nil
}

func (m *memStore) Close() error {
	return nil
}

// sliceSource replays frames from memory
type sliceSource struct {
	frames []gocv.Mat
	pos    int
}

func (s *sliceSource) Read(m *gocv.Mat) bool {

	if s.pos >= len(s.frames) {
		return false
	}

	s.frames[s.pos].CopyTo(m)
	s.pos++

	return true
}

// object is a filled 31x21 pixel rectangle centered at center
type object struct {
	center image.Point
	color  color.RGBA
}

// newFrame returns a black BGR frame with the objects drawn on it
func newFrame(objs ...object) gocv.Mat {

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)

	for _, o := range objs {
		r := image.Rect(o.center.X-15, o.center.Y-10, o.center.X+16, o.center.Y+11)
		gocv.Rectangle(&frame, r, o.color, -1)
	}

	return frame
}

// newTestPipeline returns a pipeline with ppm 400 and a belt moving at
// 0.05 m/s filmed at 25 FPS with a latency of 10 frames
func newTestPipeline(t *testing.T, st store.Store, roi gocv.Mat,
	opts tracker.Options, log logrus.FieldLogger) *Pipeline {
	t.Helper()

	p, err := NewPipeline(Params{
		PPM:       400,
		ROI:       roi,
		Tracker:   tracker.NewTracker(opts),
		Predictor: predict.NewPredictor(0.05, 25, 10),
		Store:     st,
		Logger:    log,
		Now: func() time.Time {
			return fixedTime
		},
	})
	require.NoError(t, err)

	return p
}

// observation returns a red detector observation at x, y
func observation(x, y int) detect.Observation {
	return detect.Observation{
		Center: image.Pt(x, y),
		Angle:  0,
		Color:  detect.Red,
	}
}

func recordsByID(t *testing.T, st store.Store) map[int]store.Record {
	t.Helper()

	recs, err := st.Records()
	require.NoError(t, err)

	out := make(map[int]store.Record)
	for _, r := range recs {
		out[r.ObjectID] = r
	}

	return out
}

func TestEndToEnd(t *testing.T) {

	// calibrate from a 40px wide reference object
	crop := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC1)
	defer crop.Close()
	gocv.Rectangle(&crop, image.Rect(30, 30, 70, 70), white, -1)

	cal, err := calibrate.Calibrate(crop, 127)
	require.NoError(t, err)
	require.InDelta(t, 400.0, cal.PPM, 1e-9)

	y1, y2 := calibrate.BeltBand(cal.PPM, 0.5, 0.02, calibrate.BeltBaseline)
	roi := calibrate.BeltMask(image.Pt(frameWidth, frameHeight), y1, y2)

	st := store.NewIndexedStore(filepath.Join(t.TempDir(), "objects.json"))
	require.NoError(t, st.Init())

	p := newTestPipeline(t, st, roi, tracker.Options{}, nil)
	defer p.Close()

	frame1 := newFrame(
		object{image.Pt(250, 280), lightRed},
		object{image.Pt(350, 280), lightBlue},
	)
	defer frame1.Close()

	res, err := p.ProcessFrame(frame1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Frame)
	assert.Equal(t, 2, res.Observations)
	require.Len(t, res.Persisted, 2)
	assert.Equal(t, 0, res.Dropped)

	first := recordsByID(t, st)
	require.Len(t, first, 2)
	require.Contains(t, first, 0)
	require.Contains(t, first, 1)

	idByColor := map[string]int{}
	for id, rec := range first {
		idByColor[rec.Color] = id
	}
	require.Contains(t, idByColor, "Red")
	require.Contains(t, idByColor, "Blue")

	red := first[idByColor["Red"]]
	assert.Equal(t, 0.175, red.CurrentPose[0])
	assert.Equal(t, -0.1, red.CurrentPose[1])
	assert.Equal(t, 0.195, red.PredictedPose[0])
	assert.Equal(t, red.CurrentPose[1], red.PredictedPose[1])
	assert.Equal(t, "2025-03-01T10:00:00.000000Z", red.Timestamp)

	// same objects moved 5px along the belt
	frame2 := newFrame(
		object{image.Pt(255, 280), lightRed},
		object{image.Pt(355, 280), lightBlue},
	)
	defer frame2.Close()

	res, err = p.ProcessFrame(frame2)
	require.NoError(t, err)
	require.Len(t, res.Persisted, 2)

	second := recordsByID(t, st)
	require.Len(t, second, 2)

	for id, rec := range second {
		assert.Equal(t, idByColor[rec.Color], id)
	}

	assert.Equal(t, 0.1625, second[idByColor["Red"]].CurrentPose[0])
	assert.Equal(t, -0.0875, second[idByColor["Blue"]].CurrentPose[0])
	assert.Equal(t, 2, p.Tracker().NextID())
}

func TestProcessFrameROI(t *testing.T) {

	roi := calibrate.BeltMask(image.Pt(frameWidth, frameHeight), 193, 374)
	st := &memStore{}

	p := newTestPipeline(t, st, roi, tracker.Options{}, nil)
	defer p.Close()

	// the object above the belt band is masked out
	frame := newFrame(
		object{image.Pt(300, 100), lightRed},
		object{image.Pt(300, 280), lightBlue},
	)
	defer frame.Close()

	res, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Observations)
	require.Len(t, st.records, 1)
	assert.Equal(t, "Blue", st.records[0].Color)
}

func TestProcessFrameEvenWidthObject(t *testing.T) {

	st := &memStore{}

	p := newTestPipeline(t, st, calibrate.BeltMask(image.Pt(frameWidth, frameHeight), 193, 374),
		tracker.Options{}, nil)
	defer p.Close()

	// fills columns 280..339 and rows 270..289, the pixel center (309.5, 279.5)
	// truncates to (309, 279)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(280, 270, 340, 290), lightRed, -1)

	res, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	require.Len(t, res.Updates, 1)
	assert.Equal(t, 309, res.Updates[0].X)
	assert.Equal(t, 279, res.Updates[0].Y)

	require.Len(t, st.records, 1)
	assert.Equal(t, [2]float64{0.0475, -0.0975}, st.records[0].PredictedPose)
	assert.Equal(t, 0.0275, st.records[0].CurrentPose[0])
	assert.Equal(t, -0.0975, st.records[0].CurrentPose[1])
}

func TestProcessFrameMaskMismatch(t *testing.T) {

	roi := calibrate.BeltMask(image.Pt(320, 240), 10, 20)

	p := newTestPipeline(t, &memStore{}, roi, tracker.Options{}, nil)
	defer p.Close()

	frame := newFrame()
	defer frame.Close()

	_, err := p.ProcessFrame(frame)
	assert.Error(t, err)
}

func TestProcessFrameResize(t *testing.T) {

	st := &memStore{}

	p, err := NewPipeline(Params{
		PPM:       400,
		ROI:       calibrate.BeltMask(image.Pt(frameWidth, frameHeight), 193, 374),
		Resizer:   preprocess.NewResizer(frameWidth, frameHeight),
		Tracker:   tracker.NewTracker(tracker.Options{}),
		Predictor: predict.NewPredictor(0.05, 25, 10),
		Store:     st,
	})
	require.NoError(t, err)
	defer p.Close()

	// double resolution frame, object lands at (300, 280) once scaled
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		2*frameHeight, 2*frameWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(570, 540, 632, 582), lightRed, -1)

	res, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	require.Len(t, res.Updates, 1)
	assert.InDelta(t, 300, res.Updates[0].X, 2)
	assert.InDelta(t, 280, res.Updates[0].Y, 2)
	require.Len(t, st.records, 1)
	assert.Equal(t, "Red", st.records[0].Color)
}

func TestApplyViewWindow(t *testing.T) {

	st := &memStore{}

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, nil)
	defer p.Close()

	// window for a 640 wide frame is 160 < x <= 480
	obs := []detect.Observation{
		observation(100, 100),
		observation(160, 200),
		observation(161, 300),
		observation(480, 100),
		observation(481, 200),
	}

	res, err := p.Apply(image.Pt(frameWidth, frameHeight), obs)
	require.NoError(t, err)

	assert.Len(t, res.Updates, 5)
	require.Len(t, res.Persisted, 2)
	assert.Equal(t, 2, res.Persisted[0].ObjectID)
	assert.Equal(t, 3, res.Persisted[1].ObjectID)
	assert.Equal(t, 1, st.flushes)
}

func TestApplyPrediction(t *testing.T) {

	st := &memStore{}

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, nil)
	defer p.Close()

	_, err := p.Apply(image.Pt(frameWidth, frameHeight), []detect.Observation{
		{Center: image.Pt(280, 200), Angle: 33.3, Color: detect.Blue},
	})
	require.NoError(t, err)
	require.Len(t, st.records, 1)

	rec := st.records[0]
	assert.Equal(t, 0, rec.ObjectID)
	assert.Equal(t, [3]float64{0.1, 0.1, 33.3}, rec.CurrentPose)
	assert.Equal(t, [2]float64{0.12, 0.1}, rec.PredictedPose)
	assert.Equal(t, "Blue", rec.Color)
}

func TestApplyPersistenceFailure(t *testing.T) {

	st := &memStore{fail: map[int]bool{0: true}}
	log, hook := test.NewNullLogger()

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, log)
	defer p.Close()

	size := image.Pt(frameWidth, frameHeight)

	res, err := p.Apply(size, []detect.Observation{
		observation(250, 100),
		observation(350, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Persisted, 1)
	assert.Equal(t, 1, res.Persisted[0].ObjectID)

	entry := hook.LastEntry()
	require.NotNil(t, entry)

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = e
		}
	}
	require.NotNil(t, warned)
	assert.Equal(t, 0, warned.Data["object_id"])
	assert.True(t, errors.Is(warned.Data["error"].(error), store.ErrPersistence))

	// processing carries on with the next frame
	st.fail = nil

	res, err = p.Apply(size, []detect.Observation{
		observation(255, 100),
		observation(355, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Dropped)
	assert.Len(t, res.Persisted, 2)
	assert.Len(t, st.records, 2)
	assert.Equal(t, 2, st.flushes)
}

func TestApplyFlushFailure(t *testing.T) {

	st := &memStore{failFlush: true}
	log, hook := test.NewNullLogger()

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, log)
	defer p.Close()

	res, err := p.Apply(image.Pt(frameWidth, frameHeight), []detect.Observation{
		observation(250, 100),
		observation(350, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dropped)
	assert.Empty(t, res.Persisted)

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["dropped"] == 2 {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestApplyAmbiguity(t *testing.T) {

	st := &memStore{}
	log, hook := test.NewNullLogger()

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, log)
	defer p.Close()

	size := image.Pt(frameWidth, frameHeight)

	_, err := p.Apply(size, []detect.Observation{observation(300, 100)})
	require.NoError(t, err)

	// both observations are nearest to identity 0, the last one wins
	res, err := p.Apply(size, []detect.Observation{
		observation(310, 100),
		observation(290, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Ambiguous)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, 290, res.Updates[0].X)

	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["count"] == 1 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestApplyOneToOne(t *testing.T) {

	st := &memStore{}

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{Assignment: tracker.OneToOne}, nil)
	defer p.Close()

	size := image.Pt(frameWidth, frameHeight)

	_, err := p.Apply(size, []detect.Observation{observation(300, 100)})
	require.NoError(t, err)

	res, err := p.Apply(size, []detect.Observation{
		observation(310, 100),
		observation(290, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Ambiguous)
	assert.Len(t, res.Updates, 2)
	assert.Len(t, st.records, 2)
}

func TestRun(t *testing.T) {

	st := &memStore{}

	p := newTestPipeline(t, st, gocv.NewMat(), tracker.Options{}, nil)
	defer p.Close()

	src := &sliceSource{}
	for i := 0; i < 3; i++ {
		src.frames = append(src.frames, newFrame(object{image.Pt(300+5*i, 280), lightRed}))
	}
	defer func() {
		for _, f := range src.frames {
			f.Close()
		}
	}()

	var seen []int

	count, err := p.Run(context.Background(), src, func(frame gocv.Mat, res FrameResult) error {
		seen = append(seen, res.Frame)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, []int{1, 2, 3}, seen)
	require.Len(t, st.records, 1)
	assert.Equal(t, 0, st.records[0].ObjectID)
}

func TestRunStop(t *testing.T) {

	p := newTestPipeline(t, &memStore{}, gocv.NewMat(), tracker.Options{}, nil)
	defer p.Close()

	src := &sliceSource{}
	for i := 0; i < 3; i++ {
		src.frames = append(src.frames, newFrame())
	}
	defer func() {
		for _, f := range src.frames {
			f.Close()
		}
	}()

	count, err := p.Run(context.Background(), src, func(frame gocv.Mat, res FrameResult) error {
		return ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err = p.Run(ctx, src, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, count)
}

func TestNewPipelineValidation(t *testing.T) {

	_, err := NewPipeline(Params{
		PPM:       0,
		Tracker:   tracker.NewTracker(tracker.Options{}),
		Predictor: predict.NewPredictor(0.05, 25, 10),
		Store:     &memStore{},
	})
	assert.Error(t, err)

	_, err = NewPipeline(Params{PPM: 400})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {

	dir := t.TempDir()

	// calibration image with a 40px wide reference object
	calImg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer calImg.Close()
	gocv.Rectangle(&calImg, image.Rect(120, 60, 160, 100), white, -1)

	calPath := filepath.Join(dir, "reference.png")
	require.True(t, gocv.IMWrite(calPath, calImg))

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
conveyor_belt_speed: 0.05
conveyor_belt_width_real: 0.5
conveyor_belt_border_width_real: 0.02
reference_object_coordinate: [100, 40, 180, 120]
FPS: 25
delay: 10
video_path: conveyor.mp4
calibration_image_path: %s
output_json: %s
calibration_threshold: 127
store:
  backend: json-indexed
`, calPath, filepath.Join(dir, "objects.json"))))
	require.NoError(t, err)

	p, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.InDelta(t, 400.0, p.PPM(), 1e-9)

	frame := newFrame(object{image.Pt(300, 280), lightRed})
	defer frame.Close()

	res, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	require.Len(t, res.Persisted, 1)

	recs, err := p.Store().Records()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNewFromConfigCalibrationFailure(t *testing.T) {

	dir := t.TempDir()

	calImg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer calImg.Close()

	calPath := filepath.Join(dir, "reference.png")
	require.True(t, gocv.IMWrite(calPath, calImg))

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
conveyor_belt_width_real: 0.5
reference_object_coordinate: [100, 40, 180, 120]
FPS: 25
video_path: conveyor.mp4
calibration_image_path: %s
output_json: %s
calibration_threshold: 127
`, calPath, filepath.Join(dir, "objects.json"))))
	require.NoError(t, err)

	_, err = NewFromConfig(cfg, nil)
	assert.ErrorIs(t, err, calibrate.ErrNoReferenceObject)
}
