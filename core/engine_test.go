package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariants(t *testing.T) {
	for _, v := range []EmbedVariant{EmbedBlock, EmbedReference, EmbedHybrid} {
		got, err := ParseEmbedVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	for _, v := range []ExtractVariant{ExtractBlock, ExtractReference, ExtractCover} {
		got, err := ParseExtractVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := ParseEmbedVariant("HYBRID")
	require.NoError(t, err)
	assert.Equal(t, EmbedHybrid, got)

	_, err = ParseEmbedVariant("dwt")
	assert.Error(t, err)
	_, err = ParseExtractVariant("")
	assert.Error(t, err)
}

func TestVariantPairs(t *testing.T) {
	assert.Equal(t, ExtractBlock, EmbedBlock.Pair())
	assert.Equal(t, ExtractReference, EmbedReference.Pair())
	assert.Equal(t, ExtractCover, EmbedHybrid.Pair())
}

func TestEngineBuildsVariants(t *testing.T) {
	e := NewEngine(DefaultParams())
	session := NewSession()

	emb, err := e.Embedder(EmbedReference, session)
	require.NoError(t, err)
	assert.Same(t, session, emb.(*BlockAdditive).Session)

	// 缺少 session 是调用方的问题，不是找不到 reference
	_, err = e.Embedder(EmbedReference, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingReference))

	emb, err = e.Embedder(EmbedHybrid, nil)
	require.NoError(t, err)
	assert.IsType(t, &Hybrid{}, emb)

	_, err = e.Extractor(ExtractCover, nil, nil)
	assert.True(t, errors.Is(err, ErrInputShape))

	ext, err := e.Extractor(ExtractCover, nil, smoothCover(4, 4))
	require.NoError(t, err)
	assert.IsType(t, &CoverDiff{}, ext)

	_, err = e.Embedder(EmbedVariant(42), nil)
	assert.Error(t, err)
}

func TestEngineRoundTripPerVariant(t *testing.T) {
	e := NewEngine(Params{Alpha: 0.1, Divisor: 4})
	cover := smoothCover(16, 16)
	wm := constant(4, 4, 200)

	for _, v := range []EmbedVariant{EmbedBlock, EmbedReference, EmbedHybrid} {
		t.Run(v.String(), func(t *testing.T) {
			session := NewSession()
			emb, err := e.Embedder(v, session)
			require.NoError(t, err)
			marked, err := emb.Embed(cover, wm)
			require.NoError(t, err)

			ext, err := e.Extractor(v.Pair(), session, cover)
			require.NoError(t, err)
			est, err := ext.Extract(marked)
			require.NoError(t, err)
			require.NotNil(t, est.Matrix)
		})
	}
}

func TestSessionConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := NewSession()
			wm := constant(4, 4, float64(50+i*20))
			marked, err := (&BlockAdditive{Alpha: 0.1, Session: session}).Embed(smoothCover(16, 16), wm)
			if !assert.NoError(t, err) {
				return
			}
			est, err := (&ReferenceDiff{Alpha: 0.1, Session: session}).Extract(marked)
			if !assert.NoError(t, err) {
				return
			}
			assert.InDelta(t, float64(50+i*20), est.Vector[0], 0.05)
		}(i)
	}
	wg.Wait()
}

func TestSessionStoreCopies(t *testing.T) {
	s := NewSession()
	values := []float64{3, 2, 1}
	s.Store(Reference{Values: values})
	values[0] = 99

	ref, ok := s.Reference()
	require.True(t, ok)
	assert.Equal(t, 3.0, ref.Values[0])

	s.Reset()
	_, ok = s.Reference()
	assert.False(t, ok)
}

func TestExceedsBudget(t *testing.T) {
	assert.False(t, ExceedsBudget(512, 512, 1024))
	assert.True(t, ExceedsBudget(2048, 16, 1024))
	assert.False(t, ExceedsBudget(4096, 4096, 0))
}
