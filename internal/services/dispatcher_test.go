package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent    []string
	failOn  int // 1-based index of send to fail, 0 = never
	callNum int
}

func (f *fakeTransport) SendWhatsAppMessage(to, message string) error {
	f.callNum++
	if f.failOn == f.callNum {
		return errors.New("transport down")
	}
	f.sent = append(f.sent, message)
	return nil
}

func TestDeliverShortMessageSingleChunk(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport)

	d.Deliver("u1", "hello")
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "hello", transport.sent[0])
}

func TestDeliverSplitsLongMessage(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport)

	text := strings.Repeat("a", 4000) + strings.Repeat("b", 4000) + "ccc"
	d.Deliver("u1", text)

	require.Len(t, transport.sent, 3)
	assert.Equal(t, strings.Repeat("a", 4000), transport.sent[0])
	assert.Equal(t, strings.Repeat("b", 4000), transport.sent[1])
	assert.Equal(t, "ccc", transport.sent[2])
}

func TestDeliverContinuesAfterChunkFailure(t *testing.T) {
	transport := &fakeTransport{failOn: 1}
	d := NewDispatcher(transport)

	text := strings.Repeat("a", 4001)
	d.Deliver("u1", text)

	// First chunk failed, second still went out.
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "a", transport.sent[0])
}

func TestSplitMessageRuneSafe(t *testing.T) {
	text := strings.Repeat("ü", 4001)
	chunks := SplitMessage(text, 4000)

	require.Len(t, chunks, 2)
	assert.Equal(t, 4000, len([]rune(chunks[0])))
	assert.Equal(t, "ü", chunks[1])
}

func TestSplitMessageEmpty(t *testing.T) {
	assert.Nil(t, SplitMessage("", 4000))
}
