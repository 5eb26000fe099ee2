package hal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// DirSource replays the JPEG files of a directory in name order, looping
// at the end.
type DirSource struct {
	files []string
	next  int
}

var _ core.FrameSource = (*DirSource)(nil)

// NewDirSource lists the .jpg and .jpeg files of dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG files in %s", dir)
	}

	return &DirSource{files: files}, nil
}

func (s *DirSource) Capture(ctx context.Context) (core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return core.Frame{}, err
	}

	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return core.Frame{}, fmt.Errorf("%w: %w", core.ErrCapture, err)
	}
	return core.Frame{Image: data, CapturedAt: time.Now()}, nil
}
