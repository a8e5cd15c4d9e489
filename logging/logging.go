package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

const (
	DefaultMaxSize = 2 * 1024 * 1024 // 2MB
	DefaultBackups = 1
)

// RotatingWriter is an append-only log file that rolls over to path.1..path.N
// once it grows past maxSize.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
	backups int
}

// Setup opens logPath and points the standard logger at stdout plus the file.
func Setup(logPath string) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, DefaultMaxSize, DefaultBackups)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func NewRotatingWriter(path string, maxSize int64, backups int) (*RotatingWriter, error) {
	if backups < 1 {
		backups = 1
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rw := &RotatingWriter{
		file:    f,
		path:    path,
		size:    size,
		maxSize: maxSize,
		backups: backups,
	}

	if size > maxSize {
		if err := rw.rotate(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		if rerr := w.rotate(); rerr != nil {
			fmt.Fprintf(os.Stderr, "log rotate failed: %v\n", rerr)
		}
	}

	return n, err
}

func (w *RotatingWriter) rotate() error {
	w.file.Close()

	for i := w.backups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", w.path, i), fmt.Sprintf("%s.%d", w.path, i+1))
	}
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	w.file = f
	w.size = 0
	return nil
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Level orders the LOG_LEVEL values.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var threshold = LevelInfo

// SetLevel parses a LOG_LEVEL value; unknown values fall back to info.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "debug":
		threshold = LevelDebug
	case "warn", "warning":
		threshold = LevelWarn
	case "error":
		threshold = LevelError
	default:
		threshold = LevelInfo
	}
}

// Debugf logs only when LOG_LEVEL=debug.
func Debugf(format string, args ...any) {
	if threshold <= LevelDebug {
		log.Output(2, "[debug] "+fmt.Sprintf(format, args...))
	}
}
