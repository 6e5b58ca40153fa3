package chat

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/markdave123-py/ragchat/internal/core"
)

// Stream is the finite answer of one Respond call. Recv yields fragments until
// io.EOF; Close abandons it. The completion hook runs exactly once either way.
type Stream struct {
	src     core.TokenStream
	pending []string
	text    strings.Builder

	once   sync.Once
	finish func(answer string, complete bool)
	done   bool
	err    error
}

func newStream(src core.TokenStream, finish func(string, bool)) *Stream {
	return &Stream{src: src, finish: finish}
}

// newStaticStream serves an already complete answer as at most one fragment.
func newStaticStream(answer string, finish func(string, bool)) *Stream {
	s := &Stream{finish: finish}
	if answer != "" {
		s.pending = []string{answer}
	}
	return s
}

func (s *Stream) Recv() (string, error) {
	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}

	if len(s.pending) > 0 {
		frag := s.pending[0]
		s.pending = s.pending[1:]
		s.text.WriteString(frag)
		return frag, nil
	}
	if s.src == nil {
		s.end(nil, true)
		return "", io.EOF
	}

	frag, err := s.src.Recv()
	if errors.Is(err, io.EOF) {
		s.end(nil, true)
		return "", io.EOF
	}
	if err != nil {
		s.end(err, false)
		return "", err
	}
	s.text.WriteString(frag)
	return frag, nil
}

// Close abandons the stream. Closing a finished stream is a no-op.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.end(nil, false)
	return nil
}

// Text is everything received so far.
func (s *Stream) Text() string { return s.text.String() }

func (s *Stream) end(err error, complete bool) {
	s.done = true
	s.err = err
	if s.src != nil {
		_ = s.src.Close()
	}
	s.once.Do(func() {
		if s.finish != nil {
			s.finish(s.text.String(), complete)
		}
	})
}

// Collect drains s and returns the assembled text.
func Collect(s core.TokenStream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
}
