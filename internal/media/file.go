package media

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"interviewroom/internal/utils"
)

// FileDevice replays pre-recorded answers, one file per recording, in order.
// It lets a practice run be scripted without a microphone.
type FileDevice struct {
	files     []string
	chunkSize int
	fallback  string

	mu   sync.Mutex
	next int
}

// NewFileDevice creates a device serving files in order. fallbackMIME is used
// for files whose extension is not a known audio type.
func NewFileDevice(files []string, fallbackMIME string, chunkSize int) *FileDevice {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &FileDevice{files: files, chunkSize: chunkSize, fallback: fallbackMIME}
}

func (d *FileDevice) Name() string { return "answer files" }

// Remaining returns how many answers have not been used yet
func (d *FileDevice) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files) - d.next
}

// Open reads the next answer file. A file that cannot be read is still consumed.
func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.next >= len(d.files) {
		d.mu.Unlock()
		return nil, fmt.Errorf("no pre-recorded answers left (%d used)", len(d.files))
	}
	name := d.files[d.next]
	d.next++
	d.mu.Unlock()

	if err := utils.ValidateInputFile(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name) // #nosec G304 -- answer files are chosen by the user
	if err != nil {
		return nil, fmt.Errorf("cannot read answer %s: %w", name, err)
	}

	mimeType := utils.MIMETypeForFile(name)
	if mimeType == "" {
		mimeType = d.fallback
	}

	s := &fileStream{
		chunks: make(chan []byte),
		mime:   mimeType,
		track:  &fileTrack{name: name},
	}
	go s.pump(data, d.chunkSize)
	return s, nil
}

type fileStream struct {
	chunks chan []byte
	mime   string
	track  *fileTrack
}

func (s *fileStream) Chunks() <-chan []byte { return s.chunks }
func (s *fileStream) Tracks() []Track       { return []Track{s.track} }
func (s *fileStream) MIMEType() string      { return s.mime }
func (s *fileStream) Err() error            { return nil }

// pump delivers the whole file; an answer file is never cut short by Stop
func (s *fileStream) pump(data []byte, chunkSize int) {
	defer close(s.chunks)
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		s.chunks <- data[:n]
		data = data[n:]
	}
}

type fileTrack struct {
	name    string
	stopped atomic.Bool
}

func (t *fileTrack) ID() string { return t.name }

func (t *fileTrack) Stop() error {
	t.stopped.Store(true)
	return nil
}
