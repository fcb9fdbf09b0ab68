package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("how do i purge a bucket", false)
	b := Fingerprint("how do i purge a bucket", false)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFingerprintFormatFlag(t *testing.T) {
	plain := Fingerprint("list buckets", false)
	formatted := Fingerprint("list buckets", true)
	assert.NotEqual(t, plain, formatted)
}

func TestFingerprintDistinctQueries(t *testing.T) {
	assert.NotEqual(t, Fingerprint("query one", false), Fingerprint("query two", false))
}
