package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// VerifyFacesetResponse represents the outcome of an enrollment photo set check
type VerifyFacesetResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"The face in image 4 does not appear to be the same person as in the first image."`
}

// DetectFaceResponse represents the outcome of a single photo face check
type DetectFaceResponse struct {
	Success   bool   `json:"success" example:"true"`
	Message   string `json:"message" example:"Exactly one face was detected."`
	FaceCount int    `json:"face_count" example:"1"`
}

// CameraStatusResponse represents one configured camera
type CameraStatusResponse struct {
	Name        string `json:"name" example:"entrance"`
	Active      bool   `json:"active" example:"true"`
	StreamURL   string `json:"stream_url" example:"/v1/cameras/entrance/stream"`
	FramesRead  int64  `json:"frames_read" example:"1520"`
	LastFrameAt string `json:"last_frame_at,omitempty" example:"2024-01-01T00:00:00Z"`
}

// SearchStatusRequest represents an operator decision on a reported match
type SearchStatusRequest struct {
	PersonID string `json:"person_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Action   string `json:"action" example:"accept"`
}

// StatusResponse acknowledges a request
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// MatchEntry represents a person with a pending or resolved match
type MatchEntry struct {
	PersonID string `json:"person_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	State    string `json:"state" example:"pending"`
	Since    string `json:"since" example:"2024-01-01T00:00:00Z"`
}

// MatchesResponse lists persons by match state
type MatchesResponse struct {
	Pending  []MatchEntry `json:"pending"`
	Resolved []MatchEntry `json:"resolved"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Rakshak Live Match API",
		Version:     "v1.0.0",
		Description: "Live face matching of camera feeds against persons being searched for",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/enroll/verify - Verify enrollment photo set
		endpoint.New(
			endpoint.POST,
			"/enroll/verify",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Verify an enrollment photo set"),
			endpoint.WithDescription("Checks that 3-7 photos (form field images) each contain exactly one face, that all faces belong to the same person, and that the person is not already being searched for. Rejections are returned with success=false and HTTP 200."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerifyFacesetResponse{}, "200", "Verification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "Service is not ready"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/detect - Single photo face check
		endpoint.New(
			endpoint.POST,
			"/detect",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Check a photo for exactly one face"),
			endpoint.WithDescription("Counts the faces in the uploaded photo (form field file)"),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetectFaceResponse{}, "200", "Detection completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "Service is not ready"}, "503", "Service Unavailable"),
			}),
		),

		// GET /v1/cameras - List cameras
		endpoint.New(
			endpoint.GET,
			"/cameras",
			endpoint.WithTags("Cameras"),
			endpoint.WithSummary("List cameras"),
			endpoint.WithDescription("Returns every configured camera with its capture status"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]CameraStatusResponse{}, "200", "Cameras listed"),
			}),
		),

		// GET /v1/cameras/{id}/stream - Live stream
		endpoint.New(
			endpoint.GET,
			"/cameras/{id}/stream",
			endpoint.WithTags("Cameras"),
			endpoint.WithSummary("Live annotated camera stream"),
			endpoint.WithDescription("multipart/x-mixed-replace JPEG stream with recognized faces boxed and labelled"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("multipart/x-mixed-replace")}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Camera name")),
			),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "CAMERA_NOT_FOUND", Message: "Camera not found"}, "404", "Not Found"),
			}),
		),

		// POST /v1/search-status - Operator decision
		endpoint.New(
			endpoint.POST,
			"/search-status",
			endpoint.WithTags("Matches"),
			endpoint.WithSummary("Accept or re-search a reported person"),
			endpoint.WithDescription("accept stops searching for the person until restart; research makes the person matchable again"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(SearchStatusRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StatusResponse{}, "200", "Decision applied"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_ACTION", Message: "Action must be one of: accept, research"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
			}),
		),

		// GET /v1/matches - Match states
		endpoint.New(
			endpoint.GET,
			"/matches",
			endpoint.WithTags("Matches"),
			endpoint.WithSummary("List pending and resolved persons"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchesResponse{}, "200", "Match states listed"),
			}),
		),

		// GET /v1/ws - Live events
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Live match events"),
			endpoint.WithDescription("WebSocket stream of match.detected, match.dispatched, match.dispatch_failed, match.accepted, match.research and person.admitted events"),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
