package services

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// bucketDelimiter separates visitor and experiment ids in the hash input.
// Visitor ids containing it are rejected and experiment ids are UUIDs.
const bucketDelimiter = ":"

// Bucket maps a visitor/experiment pair to a stable integer in [0,100).
func Bucket(visitorID, experimentID string) int {
	sum := sha256.Sum256([]byte(visitorID + bucketDelimiter + experimentID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}

// PickVariant walks the variants in lexicographic order over half-open
// cumulative ranges of their split and returns the one containing bucket.
// The last range always ends at 100, so a split that does not sum to 100
// still yields an answer. Negative percentages count as zero.
func PickVariant(bucket int, variants []string, split map[string]int) string {
	if len(variants) == 0 {
		return ""
	}
	ordered := append([]string(nil), variants...)
	sort.Strings(ordered)

	lower := 0
	for i, v := range ordered {
		upper := lower + max(split[v], 0)
		if i == len(ordered)-1 {
			upper = 100
		}
		if bucket >= lower && bucket < upper {
			return v
		}
		lower = upper
	}
	return ordered[len(ordered)-1]
}
