// Package journal persists the trade event stream as newline-delimited
// JSON and rebuilds position state from it for replay verification.
package journal

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/internal/schema"
)

var ErrClosed = errors.New("journal closed")

// Writer appends trade events to a JSONL file. It implements the
// publisher sink contract so journaling shares the delivery pipeline.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	path   string
	closed bool
}

// NewWriter opens the journal file for appending, creating parent
// directories as needed.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file: file,
		buf:  bufio.NewWriter(file),
		path: path,
	}, nil
}

// Append writes one event and flushes it to the file.
func (w *Writer) Append(event schema.TradeEvent) error {
	data, err := codec.EncodeTradeEvent(event)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes buffered data and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Name identifies the sink in delivery logs.
func (w *Writer) Name() string {
	return "journal:" + w.path
}

// Deliver satisfies the publisher sink contract.
func (w *Writer) Deliver(_ context.Context, event schema.TradeEvent) error {
	return w.Append(event)
}

// ReadAll loads every event from a journal file in append order.
func ReadAll(path string) ([]schema.TradeEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []schema.TradeEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		event, err := codec.DecodeTradeEvent(raw)
		if err != nil {
			return nil, errors.Errorf("journal line %d: %+v", line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
