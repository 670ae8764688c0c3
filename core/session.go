package haar

// Defaults of the single object tracking mode.
const (
	DefaultScaleFactor  = 1.4
	DefaultImageScale   = 2
	DefaultMinNeighbors = 2
	DefaultMinSize      = 20
	DefaultFacePad      = 10
	DefaultCropPad      = 40
)

// SessionConfig configures a tracking session.
type SessionConfig struct {
	// MinSize is the floor of the minimum window size.
	MinSize Size
	// FacePad is subtracted from the size of the last detection to get the
	// minimum window size of the next scan.
	FacePad int
	// CropPad is the margin added around the last detection to get the region
	// scanned by the next call.
	CropPad int
	// RoughSearch accepts the first component found, without refining it on smaller scales.
	RoughSearch bool
}

// DefaultSessionConfig returns the configuration used for face tracking.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MinSize: Size{Width: DefaultMinSize, Height: DefaultMinSize},
		FacePad: DefaultFacePad,
		CropPad: DefaultCropPad,
	}
}

// Session remembers where the tracked object was found in the previous frame.
// When locked, the next scan is restricted to the padded surroundings of the last
// detection and skips the windows much smaller than it.
//
// A session must not be used by concurrent callers.
type Session struct {
	cfg     SessionConfig
	crop    Rect
	minSize Size
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{cfg: cfg}
	s.Reset()
	return s
}

// Reset forgets the last detection.
func (s *Session) Reset() {
	s.crop = Rect{}
	s.minSize = s.cfg.MinSize
}

// Locked reports whether the session remembers a previous detection.
func (s *Session) Locked() bool { return !s.crop.Empty() }

// Crop returns the region scanned by the next call, empty when idle.
func (s *Session) Crop() Rect { return s.crop }

// MinSize returns the minimum window size of the next scan.
func (s *Session) MinSize() Size { return s.minSize }

// lock stores the detection, given in image coordinates.
func (s *Session) lock(det Rect, bounds Rect) {
	s.minSize = Size{
		Width:  max(det.Width-s.cfg.FacePad, s.cfg.MinSize.Width),
		Height: max(det.Height-s.cfg.FacePad, s.cfg.MinSize.Height),
	}
	pad := s.cfg.CropPad
	s.crop = Rect{
		X:      det.X - pad,
		Y:      det.Y - pad,
		Width:  det.Width + 2*pad,
		Height: det.Height + 2*pad,
	}.Intersect(bounds)
}

// DetectSingle looks for the biggest object, restricting the scan to the
// surroundings of the previous detection of the session. The returned detection
// is in image coordinates, nil when nothing was found. MinSize and Flags of cp are
// replaced by the session's own.
func (d *Detector) DetectSingle(s *Session, cp CascadeParams) (*Detection, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}

	bounds := cp.Bounds()
	var origin Rect
	if s.Locked() {
		if bounds.Contains(s.crop) {
			origin = s.crop
			cp.ImageParams = cp.Crop(s.crop)
		} else {
			// The frame size changed since the last call.
			s.Reset()
		}
	}
	cp.MinSize = s.minSize
	cp.Flags = FindBiggestObject
	if s.cfg.RoughSearch {
		cp.Flags |= DoRoughSearch
	}

	dets, err := d.RunCascade(cp)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		s.Reset()
		return nil, nil
	}

	det := dets[0]
	det.X += origin.X
	det.Y += origin.Y
	s.lock(det.Rect, bounds)
	return &det, nil
}
