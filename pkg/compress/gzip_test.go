package compress

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipRoundTrip(t *testing.T) {
	g := NewGzip(gzip.DefaultCompression)
	payload := bytes.Repeat([]byte("mvt-layer-points"), 64)

	out, err := g.Compress(context.Background(), payload)
	require.NoError(t, err)
	assert.Less(t, len(out), len(payload))

	back, err := Decompress(out)
	require.NoError(t, err)
	assert.Equal(t, payload, back)
}

func TestGzipEmptyTile(t *testing.T) {
	out, err := NewGzip(gzip.BestSpeed).Compress(context.Background(), nil)
	require.NoError(t, err)

	back, err := Decompress(out)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestGzipInvalidLevel(t *testing.T) {
	_, err := NewGzip(42).Compress(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestGzipCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGzip(gzip.DefaultCompression).Compress(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}
