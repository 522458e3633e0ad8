// Package capture reads frames from local cameras and network streams through OpenCV.
package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

var (
	ErrNotOpened  = errors.New("capture device not opened")
	ErrReadFailed = errors.New("failed to read frame")
	ErrEmptyFrame = errors.New("empty frame")
)

// Device is a camera or stream opened with OpenCV's VideoCapture. A device
// string that parses as an integer selects a local camera by index; anything
// else is passed through as a file path or stream URL.
type Device struct {
	device string

	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

func NewDevice(device string) *Device {
	return &Device{device: device}
}

// Open opens the underlying capture. Calling Open on an open device is a no-op.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}

	var source interface{} = d.device
	if index, err := strconv.Atoi(d.device); err == nil {
		source = index
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.device, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return fmt.Errorf("open %s: %w", d.device, ErrNotOpened)
	}

	// Keep only the newest frame buffered so sampling sees live images
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	d.capture = capture
	d.frame = gocv.NewMat()
	return nil
}

// Read grabs the next frame and converts it to an image
func (d *Device) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil, ErrNotOpened
	}

	if ok := d.capture.Read(&d.frame); !ok {
		return nil, ErrReadFailed
	}
	if d.frame.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the capture. The device may be opened again afterwards.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}

	err := d.capture.Close()
	_ = d.frame.Close()
	d.capture = nil
	return err
}

// String returns the device identifier
func (d *Device) String() string {
	return d.device
}
