// Package verification checks enrollment photo sets before a person is registered.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/similarity"
)

const (
	MinImages = 3
	MaxImages = 7

	// extractConcurrency bounds parallel extractor calls per request
	extractConcurrency = 3
)

const (
	VerifiedMessage     = "All images are valid, faces match, and no duplicates found."
	NoFaceMessage       = "No face was detected in the image."
	SingleFaceMessage   = "Exactly one face was detected."
	multipleFacesFormat = "More than one face detected. Found %d faces."
)

// Image is one uploaded photo
type Image struct {
	Filename string
	Data     []byte
}

func (i Image) label() string {
	if i.Filename == "" {
		return ""
	}
	return " (" + i.Filename + ")"
}

// Snapshotter returns the embeddings currently being searched for
type Snapshotter interface {
	Snapshot() []domain.FaceEmbedding
}

// Config holds the verification thresholds
type Config struct {
	// ConsistencyThreshold is the minimum similarity of every image to the first
	ConsistencyThreshold float64
	// DuplicateThreshold is the similarity above which a registered person is a duplicate
	DuplicateThreshold float64
}

func DefaultConfig() Config {
	return Config{
		ConsistencyThreshold: 0.6,
		DuplicateThreshold:   0.7,
	}
}

// Service validates enrollment photo sets. It never modifies the registry.
type Service struct {
	extractor provider.FaceExtractor
	registry  Snapshotter
	config    Config
	logger    *slog.Logger
}

func NewService(extractor provider.FaceExtractor, registry Snapshotter, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		registry:  registry,
		config:    config,
		logger:    logger.With("component", "verification"),
	}
}

// Verify checks that images hold between MinImages and MaxImages photos with
// exactly one face each, that every face matches the first one, and that the
// person is not already registered. A rejected set is reported as *Failure;
// any other error means the check could not be performed.
func (s *Service) Verify(ctx context.Context, images []Image) error {
	if len(images) < MinImages || len(images) > MaxImages {
		return imageCountFailure(len(images))
	}

	results, err := s.extractAll(ctx, images)
	if err != nil {
		return err
	}

	embeddings := make([][]float64, len(images))
	for i, r := range results {
		position := i + 1
		switch {
		case r.err != nil:
			return unprocessableFailure(position, r.err)
		case r.face.FaceCount == 0:
			return noFaceFailure(images[i], position)
		case r.face.FaceCount > 1:
			return multipleFacesFailure(images[i], position)
		case !r.face.SingleFace():
			return unprocessableFailure(position, errMissingEmbedding)
		}
		embeddings[i] = r.face.Embedding
	}

	reference := embeddings[0]
	for i := 1; i < len(embeddings); i++ {
		score := similarity.Cosine(reference, embeddings[i])
		if score < s.config.ConsistencyThreshold {
			s.logger.Debug("inconsistent enrollment image", "image", i+1, "similarity", score)
			return inconsistentFailure(i + 1)
		}
	}

	if m, ok := similarity.FirstAbove(s.registry.Snapshot(), reference, s.config.DuplicateThreshold); ok {
		s.logger.Info("duplicate enrollment rejected",
			"person_id", m.Candidate.PersonID,
			"similarity", m.Similarity,
		)
		return duplicateFailure(m.Candidate.DisplayName)
	}

	return nil
}

var errMissingEmbedding = errors.New("no embedding returned for the detected face")

type extraction struct {
	face *provider.FaceResult
	err  error
}

// extractAll runs the extractor over every image concurrently. Per-image
// rejections are kept in the result; outages and cancellation abort the batch.
func (s *Service) extractAll(ctx context.Context, images []Image) ([]extraction, error) {
	results := make([]extraction, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)

	for i, img := range images {
		g.Go(func() error {
			face, err := s.extractor.Extract(gctx, img.Data)
			if err != nil {
				if fatal(err) {
					return fmt.Errorf("extract image %d: %w", i+1, err)
				}
				results[i] = extraction{err: err}
				return nil
			}
			results[i] = extraction{face: face}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func fatal(err error) bool {
	return errors.Is(err, provider.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Detection is the outcome of checking a single image for a face
type Detection struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	FaceCount int    `json:"face_count"`
}

// DetectSingle reports how many faces image contains and whether it is exactly one
func (s *Service) DetectSingle(ctx context.Context, image []byte) (Detection, error) {
	face, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return Detection{}, fmt.Errorf("detect face: %w", err)
	}

	switch {
	case face.FaceCount == 0:
		return Detection{Message: NoFaceMessage}, nil
	case face.FaceCount == 1:
		return Detection{Success: true, Message: SingleFaceMessage, FaceCount: 1}, nil
	default:
		return Detection{
			Message:   fmt.Sprintf(multipleFacesFormat, face.FaceCount),
			FaceCount: face.FaceCount,
		}, nil
	}
}
