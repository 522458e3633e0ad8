package rekognition

// Config holds configuration for the AWS Rekognition detector
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinConfidence is the lowest label confidence (0-100) Rekognition returns
	MinConfidence float32

	// MaxLabels bounds the number of labels returned per image
	MaxLabels int32
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 50,
		MaxLabels:     20,
	}
}
