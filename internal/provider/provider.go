package provider

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is wrapped by provider errors that indicate the backing
// model service cannot be reached, as opposed to a problem with the image.
var ErrUnavailable = errors.New("provider unavailable")

// ObjectDetector locates regions containing the class of interest (people) in an image
type ObjectDetector interface {
	// Detect returns one Detection per person found in the encoded image
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// FaceExtractor turns an image region into a face embedding
type FaceExtractor interface {
	// Extract counts the faces in the encoded image and returns the embedding of the
	// most prominent one. Embedding is nil when no face was found.
	Extract(ctx context.Context, image []byte) (*FaceResult, error)
}

// Detection represents a detected object in the image
type Detection struct {
	Label       string      `json:"label"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// FaceResult is the outcome of running embedding extraction on one image
type FaceResult struct {
	FaceCount int       `json:"face_count"`
	Embedding []float64 `json:"-"`
}

// SingleFace reports whether exactly one face was found
func (r *FaceResult) SingleFace() bool {
	return r.FaceCount == 1 && len(r.Embedding) > 0
}

// BoundingBox represents an area of the image as ratios of its width and height
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect converts the relative box into pixel coordinates within bounds,
// clipped to bounds.
func (b BoundingBox) Rect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	r := image.Rect(
		bounds.Min.X+int(b.X*w),
		bounds.Min.Y+int(b.Y*h),
		bounds.Min.X+int((b.X+b.Width)*w),
		bounds.Min.Y+int((b.Y+b.Height)*h),
	)

	return r.Intersect(bounds)
}

// WholeFrame is an ObjectDetector that treats the whole image as a single region.
// Used when no detection model is configured.
type WholeFrame struct{}

// Detect returns a single detection spanning the image
func (WholeFrame) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	if len(image) == 0 {
		return nil, nil
	}
	return []Detection{{
		Label:       "Person",
		BoundingBox: BoundingBox{X: 0, Y: 0, Width: 1, Height: 1},
		Confidence:  1,
	}}, nil
}

var _ ObjectDetector = WholeFrame{}
