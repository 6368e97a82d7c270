package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Lazy opens its transcriber on first use. With release set, the
// transcriber is closed after every call and reopened on the next one.
type Lazy struct {
	open    func(context.Context) (Transcriber, error)
	release bool

	mu  sync.Mutex
	cur Transcriber
}

func NewLazy(open func(context.Context) (Transcriber, error), release bool) *Lazy {
	return &Lazy{open: open, release: release}
}

// Load opens the transcriber now if it is not open yet.
func (l *Lazy) Load(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

func (l *Lazy) get(ctx context.Context) (Transcriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		t, err := l.open(ctx)
		if err != nil {
			return nil, err
		}
		l.cur = t
	}
	return l.cur, nil
}

func (l *Lazy) Transcribe(ctx context.Context, audio io.Reader, filename, lang string) (*Transcript, error) {
	t, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	res, err := t.Transcribe(ctx, audio, filename, lang)
	if l.release {
		l.mu.Lock()
		if l.cur == t {
			l.cur = nil
			if cerr := t.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("release transcriber: %w", cerr))
			}
		}
		l.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Loaded reports whether a transcriber is currently open.
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur != nil
}

func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		return nil
	}
	err := l.cur.Close()
	l.cur = nil
	return err
}
