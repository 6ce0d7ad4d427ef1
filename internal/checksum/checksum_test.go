package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"

	"hexpeek/internal/hexerr"
	"hexpeek/internal/store"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumKnownDigests(t *testing.T) {
	s := store.NewMemory("", []byte("abc"))
	tests := []struct {
		algo Algorithm
		want string
	}{
		{SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{SHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{XXH64, fmt.Sprintf("%016x", xxhash.Sum64String("abc"))},
	}
	for _, tt := range tests {
		t.Run(tt.algo.String(), func(t *testing.T) {
			got, err := Sum(context.Background(), s, tt.algo, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSumAcrossChunks(t *testing.T) {
	data := make([]byte, 2*ChunkSize+12345)
	rand.New(rand.NewSource(1)).Read(data)

	var calls int
	got, err := Sum(context.Background(), store.NewMemory("", data), SHA256, func(done, total int64) {
		calls++
		assert.Equal(t, int64(len(data)), total)
	})
	require.NoError(t, err)
	want := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
	assert.Equal(t, 3, calls)
}

func TestSumEmptyStore(t *testing.T) {
	got, err := Sum(context.Background(), store.NewMemory("", nil), SHA256, nil)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
}

func TestSumCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sum(ctx, store.NewMemory("", []byte("x")), SHA1, nil)
	assert.ErrorIs(t, err, hexerr.ErrCancelled)
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"sha256", "SHA-256", "sha1", "xxh64"} {
		_, err := ParseAlgorithm(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseAlgorithm("md5")
	assert.Error(t, err)
}
