package verification

import "fmt"

// Reason classifies a verification failure
type Reason string

const (
	ReasonImageCount    Reason = "image_count"
	ReasonNoFace        Reason = "no_face"
	ReasonMultipleFaces Reason = "multiple_faces"
	ReasonUnprocessable Reason = "unprocessable"
	ReasonInconsistent  Reason = "inconsistent"
	ReasonDuplicate     Reason = "duplicate"
)

// Failure is a verification outcome that rejects the submitted images.
// It is a normal result for the caller to display, not an operational error.
type Failure struct {
	Reason     Reason `json:"reason"`
	Image      int    `json:"image,omitempty"` // 1-based position of the offending image
	PersonName string `json:"person_name,omitempty"`
	Message    string `json:"message"`
}

func (f *Failure) Error() string {
	return f.Message
}

func imageCountFailure(got int) *Failure {
	return &Failure{
		Reason:  ReasonImageCount,
		Message: fmt.Sprintf("Invalid number of images. Expected %d-%d, got %d.", MinImages, MaxImages, got),
	}
}

func noFaceFailure(img Image, position int) *Failure {
	return &Failure{
		Reason:  ReasonNoFace,
		Image:   position,
		Message: fmt.Sprintf("No face was detected in image %d%s.", position, img.label()),
	}
}

func multipleFacesFailure(img Image, position int) *Failure {
	return &Failure{
		Reason:  ReasonMultipleFaces,
		Image:   position,
		Message: fmt.Sprintf("More than one face detected in image %d%s.", position, img.label()),
	}
}

func unprocessableFailure(position int, err error) *Failure {
	return &Failure{
		Reason:  ReasonUnprocessable,
		Image:   position,
		Message: fmt.Sprintf("Error processing image %d: %v", position, err),
	}
}

func inconsistentFailure(position int) *Failure {
	return &Failure{
		Reason:  ReasonInconsistent,
		Image:   position,
		Message: fmt.Sprintf("The face in image %d does not appear to be the same person as in the first image.", position),
	}
}

func duplicateFailure(name string) *Failure {
	return &Failure{
		Reason:     ReasonDuplicate,
		PersonName: name,
		Message:    fmt.Sprintf("This person appears to be a duplicate of '%s' who is already in the system.", name),
	}
}
