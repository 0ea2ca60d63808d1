package publisher

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"scholarsift/scholarworker/logger"
	apperrors "scholarsift/scholarworker/pkg/errors"
)

// FilePublisher appends records to a newline-delimited JSON file
type FilePublisher struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFilePublisher opens path for appending, creating parent directories
func NewFilePublisher(path string) (*FilePublisher, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewPublisher(path, "failed to create output directory", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.NewPublisher(path, "failed to open output file", err)
	}
	return &FilePublisher{path: path, file: file}, nil
}

// Publish writes message as one line. key is already part of the record.
func (p *FilePublisher) Publish(key string, message []byte) error {
	trimmed := bytes.TrimSpace(message)
	line := make([]byte, 0, len(trimmed)+1)
	line = append(append(line, trimmed...), '\n')

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.file.Write(line); err != nil {
		logger.ForPublisher().Error().Err(err).Str("path", p.path).Msg("write failed")
		return apperrors.NewPublisher(key, "failed to write record", err)
	}
	return nil
}

// TrimStreams flushes the file to disk. The file itself is never truncated.
func (p *FilePublisher) TrimStreams() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Sync()
}

// Close closes the output file
func (p *FilePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}
