package haar

import "errors"

// Configuration errors. They are detected once, before any scanning starts,
// and reject the whole operation. Wrapped errors can be tested with errors.Is.
var (
	ErrInvalidCascade     = errors.New("invalid cascade")
	ErrInvalidScale       = errors.New("scale must be positive")
	ErrInvalidScaleFactor = errors.New("scale factor must be greater than 1")
	ErrInvalidParams      = errors.New("invalid detection parameters")
	ErrUnsupportedImage   = errors.New("unsupported image")
	ErrImageTooLarge      = errors.New("image exceeds the maximum pixel count")
	ErrWindowOutOfBounds  = errors.New("detection window outside of the integral image")
	ErrNilSession         = errors.New("nil tracking session")
)
