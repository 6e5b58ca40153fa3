package chat

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRunsFinishOnce(t *testing.T) {
	var calls []bool
	src := &fakeTokens{frags: []string{"a", "b"}}
	s := newStream(src, func(answer string, complete bool) {
		calls = append(calls, complete)
		assert.Equal(t, "ab", answer)
	})

	got, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
	assert.Equal(t, "ab", s.Text())

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, s.Close())
	assert.Equal(t, []bool{true}, calls)
	assert.True(t, src.closed)
}

func TestStreamErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	s := newStream(&fakeTokens{frags: []string{"x"}, failAt: 1, err: boom}, nil)

	frag, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "x", frag)

	_, err = s.Recv()
	assert.ErrorIs(t, err, boom)
	_, err = s.Recv()
	assert.ErrorIs(t, err, boom)
}

func TestStaticStream(t *testing.T) {
	complete := false
	s := newStaticStream("", func(_ string, c bool) { complete = c })
	_, err := s.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, complete)
}
