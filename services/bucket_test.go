package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketIsDeterministicAndInRange(t *testing.T) {
	expID := uuid.NewString()
	for i := 0; i < 1000; i++ {
		visitor := fmt.Sprintf("visitor-%d", i)
		b := Bucket(visitor, expID)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, 100)
		assert.Equal(t, b, Bucket(visitor, expID))
	}
}

func TestPickVariantRanges(t *testing.T) {
	variants := []string{"variant_a", "control"}
	split := map[string]int{"control": 30, "variant_a": 70}

	// control sorts first and owns [0,30).
	assert.Equal(t, "control", PickVariant(0, variants, split))
	assert.Equal(t, "control", PickVariant(29, variants, split))
	assert.Equal(t, "variant_a", PickVariant(30, variants, split))
	assert.Equal(t, "variant_a", PickVariant(99, variants, split))
}

func TestPickVariantIgnoresInputOrder(t *testing.T) {
	split := map[string]int{"a": 20, "b": 30, "c": 50}
	for b := 0; b < 100; b++ {
		assert.Equal(t,
			PickVariant(b, []string{"a", "b", "c"}, split),
			PickVariant(b, []string{"c", "a", "b"}, split))
	}
}

func TestPickVariantZeroPercentNeverChosen(t *testing.T) {
	split := map[string]int{"control": 0, "variant": 100}
	for b := 0; b < 100; b++ {
		assert.Equal(t, "variant", PickVariant(b, []string{"control", "variant"}, split))
	}
}

func TestPickVariantClampsLastRange(t *testing.T) {
	// A split summing below 100 still maps every bucket.
	split := map[string]int{"a": 40, "b": 40}
	assert.Equal(t, "b", PickVariant(95, []string{"a", "b"}, split))

	// Negative percentages count as zero.
	split = map[string]int{"a": -10, "b": 110}
	assert.Equal(t, "b", PickVariant(0, []string{"a", "b"}, split))
}

func TestPickVariantEmpty(t *testing.T) {
	assert.Equal(t, "", PickVariant(10, nil, nil))
}

func TestBucketDistributionMatchesSplit(t *testing.T) {
	const n = 100_000
	expID := uuid.NewString()
	variants := []string{"control", "variant_a"}
	split := map[string]int{"control": 50, "variant_a": 50}

	counts := map[string]int{}
	for i := 0; i < n; i++ {
		counts[PickVariant(Bucket(fmt.Sprintf("v-%d", i), expID), variants, split)]++
	}
	for _, v := range variants {
		share := float64(counts[v]) / n * 100
		assert.InDelta(t, 50, share, 2, "variant %s got %.2f%%", v, share)
	}
}

func TestBucketDistributionUnevenSplit(t *testing.T) {
	const n = 100_000
	expID := uuid.NewString()
	variants := []string{"a", "b", "c"}
	split := map[string]int{"a": 20, "b": 30, "c": 50}

	counts := map[string]int{}
	for i := 0; i < n; i++ {
		counts[PickVariant(Bucket(fmt.Sprintf("v-%d", i), expID), variants, split)]++
	}
	for _, v := range variants {
		share := float64(counts[v]) / n * 100
		assert.InDelta(t, float64(split[v]), share, 2, "variant %s got %.2f%%", v, share)
	}
}
