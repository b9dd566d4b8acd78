// Package media captures one spoken answer at a time from an audio input device.
package media

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"interviewroom/internal/errors"
	"interviewroom/internal/types"
	"interviewroom/internal/utils"
)

var (
	// ErrDeviceUnavailable is wrapped by every failure to acquire the input device
	ErrDeviceUnavailable = stderrors.New("audio input device unavailable")
	ErrAlreadyRecording  = stderrors.New("a recording is already in progress")
	ErrNotRecording      = stderrors.New("no recording in progress")
	ErrEmptyRecording    = stderrors.New("recording contains no audio")
)

// drainTimeout bounds how long Stop waits for a device to flush after its tracks are stopped
const drainTimeout = 5 * time.Second

// Track is one hardware or process handle backing a stream
type Track interface {
	ID() string
	Stop() error
}

// Stream delivers encoded audio from an opened device. Chunks is closed when
// the stream ends, after which Err reports why it ended abnormally.
type Stream interface {
	Chunks() <-chan []byte
	Tracks() []Track
	MIMEType() string
	Err() error
}

// Device acquires audio input
type Device interface {
	Name() string
	Open(ctx context.Context) (Stream, error)
}

// Options bound a single capture
type Options struct {
	MaxDuration time.Duration // 0 means no limit
	MaxBytes    int64         // 0 means no limit
}

// Controller owns the input device for the duration of one recording
type Controller struct {
	device Device
	opts   Options
	logger *errors.Logger

	mu     sync.Mutex
	active *capture
}

type capture struct {
	stream    Stream
	started   time.Time
	timer     *time.Timer
	done      chan struct{}
	buf       bytes.Buffer
	truncated bool
	release   sync.Once
	logger    *errors.Logger
}

// NewController creates a capture controller for device
func NewController(device Device, opts Options, logger *errors.Logger) *Controller {
	return &Controller{device: device, opts: opts, logger: logger}
}

// Recording reports whether a capture is in progress
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start opens the device and begins buffering audio in memory.
// A failure leaves the controller idle so the caller can retry.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrAlreadyRecording
	}

	stream, err := c.device.Open(ctx)
	if err != nil {
		return errors.NewDeviceError(errors.ErrCodeDeviceUnavailable,
			fmt.Sprintf("cannot open %s", c.device.Name()),
			fmt.Errorf("%w: %w", ErrDeviceUnavailable, err))
	}

	cp := &capture{
		stream:  stream,
		started: time.Now(),
		done:    make(chan struct{}),
		logger:  c.logger,
	}
	if c.opts.MaxDuration > 0 {
		cp.timer = time.AfterFunc(c.opts.MaxDuration, func() {
			c.logger.Info("Maximum recording duration reached", "max_duration", c.opts.MaxDuration.String())
			cp.stopTracks()
		})
	}
	go cp.collect(c.opts.MaxBytes)

	c.active = cp
	c.logger.Debug("Recording started", "device", c.device.Name(), "tracks", len(stream.Tracks()))
	return nil
}

// Stop releases the device and returns everything buffered as one recording.
// Tracks are stopped exactly once whatever the outcome.
func (c *Controller) Stop() (*types.Recording, error) {
	c.mu.Lock()
	cp := c.active
	c.active = nil
	c.mu.Unlock()

	if cp == nil {
		return nil, ErrNotRecording
	}

	if cp.timer != nil {
		cp.timer.Stop()
	}
	cp.stopTracks()
	duration := time.Since(cp.started)

	select {
	case <-cp.done:
	case <-time.After(drainTimeout):
		return nil, errors.NewDeviceError(errors.ErrCodeDeviceFailed, "device did not finish after stop", nil).
			WithContext("device", c.device.Name())
	}

	if streamErr := cp.stream.Err(); streamErr != nil {
		if cp.buf.Len() == 0 {
			return nil, errors.NewDeviceError(errors.ErrCodeDeviceFailed, "recording failed", streamErr).
				WithContext("device", c.device.Name())
		}
		c.logger.Warn("Recording ended with an error, keeping captured audio",
			"device", c.device.Name(), "error", streamErr.Error())
	}
	if cp.buf.Len() == 0 {
		return nil, errors.NewDeviceError(errors.ErrCodeDeviceFailed, "nothing was recorded", ErrEmptyRecording)
	}
	if cp.truncated {
		c.logger.Warn("Recording truncated at size limit", "max_bytes", utils.FormatFileSize(c.opts.MaxBytes))
	}

	rec := &types.Recording{
		Data:     cp.buf.Bytes(),
		MIMEType: cp.stream.MIMEType(),
		Duration: duration,
	}
	c.logger.Debug("Recording stopped",
		"size", utils.FormatFileSize(int64(rec.Size())),
		"duration", duration.String())
	return rec, nil
}

func (cp *capture) collect(maxBytes int64) {
	defer close(cp.done)
	for chunk := range cp.stream.Chunks() {
		if cp.truncated {
			continue
		}
		if maxBytes > 0 && int64(cp.buf.Len()+len(chunk)) > maxBytes {
			cp.buf.Write(chunk[:maxBytes-int64(cp.buf.Len())])
			cp.truncated = true
			cp.stopTracks()
			continue
		}
		cp.buf.Write(chunk)
	}
}

func (cp *capture) stopTracks() {
	cp.release.Do(func() {
		for _, track := range cp.stream.Tracks() {
			if err := track.Stop(); err != nil {
				cp.logger.Warn("Failed to stop track", "track", track.ID(), "error", err.Error())
			}
		}
	})
}
