// ABOUTME: Recording Writer used by dashboard tests

package dashboard

import (
	"context"
	"sync"
)

type writeCall struct {
	Op    string
	ID    string
	Entry AppEntry
}

// recordingWriter records writes instead of issuing them
type recordingWriter struct {
	mu    sync.Mutex
	calls []writeCall
}

func (w *recordingWriter) Insert(ctx context.Context, entry AppEntry) {
	w.record(writeCall{Op: "insert", Entry: entry})
}

func (w *recordingWriter) Update(ctx context.Context, id string, entry AppEntry) {
	w.record(writeCall{Op: "update", ID: id, Entry: entry})
}

func (w *recordingWriter) Delete(ctx context.Context, id string) {
	w.record(writeCall{Op: "delete", ID: id})
}

func (w *recordingWriter) record(c writeCall) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, c)
}

func (w *recordingWriter) Calls() []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]writeCall(nil), w.calls...)
}
