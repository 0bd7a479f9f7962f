// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying io.Writer (typically a
// rotating file) on a dedicated goroutine, so that a slow or stalled
// disk never blocks the goroutine handling a kernel request.
type AsyncLogger struct {
	out     io.Writer
	msgs    chan []byte
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewAsyncLogger starts a writer goroutine that drains msgs into w.
// bufferSize bounds the number of pending messages; once full, further
// writes are dropped with a warning to stderr rather than blocking.
func NewAsyncLogger(w io.Writer, bufferSize int) *AsyncLogger {
	l := &AsyncLogger{
		out:  w,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *AsyncLogger) run() {
	defer close(l.done)
	for b := range l.msgs {
		if _, err := l.out.Write(b); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
		}
	}
}

// Write implements io.Writer. It copies p, since the caller may reuse
// its buffer after Write returns.
func (l *AsyncLogger) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)

	select {
	case l.msgs <- cp:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains remaining buffered messages and stops the writer
// goroutine. If the underlying writer is an io.Closer, it is closed
// too.
func (l *AsyncLogger) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	close(l.msgs)
	<-l.done

	if c, ok := l.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
