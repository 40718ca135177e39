package loganalysis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// tailWindow holds the last N lines of a file
type tailWindow struct {
	lines []string
	next  int
	full  bool
}

func newTailWindow(size int) *tailWindow {
	return &tailWindow{lines: make([]string, size)}
}

func (w *tailWindow) push(line string) {
	w.lines[w.next] = line
	w.next = (w.next + 1) % len(w.lines)
	if w.next == 0 {
		w.full = true
	}
}

// ordered returns the kept lines oldest first
func (w *tailWindow) ordered() []string {
	if !w.full {
		return append([]string(nil), w.lines[:w.next]...)
	}
	out := make([]string, 0, len(w.lines))
	out = append(out, w.lines[w.next:]...)
	return append(out, w.lines[:w.next]...)
}

// ReadTail returns at most maxLines trailing lines of path, oldest first.
// Files smaller than wholeReadBytes are read in one call, larger ones are streamed.
func ReadTail(path string, maxLines int, wholeReadBytes int64) ([]string, os.FileInfo, error) {
	if maxLines < 1 {
		return nil, nil, fmt.Errorf("maxLines must be positive, got %d", maxLines)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	if info.Size() < wholeReadBytes {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, info, &ReadError{Path: path, Err: err}
		}
		lines := splitLines(string(data))
		if len(lines) > maxLines {
			lines = lines[len(lines)-maxLines:]
		}
		return lines, info, nil
	}

	lines, err := streamTail(f, maxLines)
	if err != nil {
		return nil, info, &ReadError{Path: path, Err: err}
	}
	return lines, info, nil
}

func streamTail(r io.Reader, maxLines int) ([]string, error) {
	window := newTailWindow(maxLines)
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			window.push(strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return window.ordered(), nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ReadError is a failure after the file was opened, while its content was being read
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
