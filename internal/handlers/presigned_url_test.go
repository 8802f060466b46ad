package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "scenarios.csv", sanitizeFilename("scenarios.csv"))
	assert.Equal(t, "my-batch_2.csv", sanitizeFilename("my-batch_2.csv"))
	assert.Equal(t, "batch1.csv", sanitizeFilename("batch 1!.csv"))
	assert.Equal(t, "....csv", sanitizeFilename("../../.csv"))

	long := ""
	for i := 0; i < 150; i++ {
		long += "a"
	}
	assert.Len(t, sanitizeFilename(long), 100)
}

func TestHasDownloadablePrefix(t *testing.T) {
	assert.True(t, hasDownloadablePrefix("results/abc123.json"))
	assert.True(t, hasDownloadablePrefix("processed/scenario-batches/2026/08/30/x.csv"))

	// Raw uploads and arbitrary keys are never downloadable.
	assert.False(t, hasDownloadablePrefix("scenario-batches/2026/08/30/x.csv"))
	assert.False(t, hasDownloadablePrefix("guidelines/overrides.json"))
	assert.False(t, hasDownloadablePrefix(""))
}
