package stream

import (
	"sync"
	"time"
)

// Frame is the most recent encoded image produced by a camera
type Frame struct {
	CameraID  string
	Data      []byte // JPEG
	Timestamp time.Time
}

type slot struct {
	mu    sync.RWMutex
	frame Frame
	set   bool
}

// Publisher keeps the latest frame of each camera. Each camera has its own
// lock so a slow reader of one stream never delays another camera's writer.
type Publisher struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

func NewPublisher() *Publisher {
	return &Publisher{
		slots: make(map[string]*slot),
	}
}

func (p *Publisher) slot(cameraID string, create bool) *slot {
	p.mu.RLock()
	s, ok := p.slots[cameraID]
	p.mu.RUnlock()
	if ok || !create {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.slots[cameraID]; !ok {
		s = &slot{}
		p.slots[cameraID] = s
	}
	return s
}

// Publish replaces the latest frame of frame.CameraID. The caller must not
// modify frame.Data afterwards.
func (p *Publisher) Publish(frame Frame) {
	s := p.slot(frame.CameraID, true)

	s.mu.Lock()
	s.frame = frame
	s.set = true
	s.mu.Unlock()
}

// Latest returns the most recent frame of cameraID, or false when the camera
// has not produced one yet.
func (p *Publisher) Latest(cameraID string) (Frame, bool) {
	s := p.slot(cameraID, false)
	if s == nil {
		return Frame{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.set
}
