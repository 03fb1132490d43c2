package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Dynamite", "dynamite"},
		{"  BTS  ", "bts"},
		{"Butter (feat. Megan Thee Stallion)", "butter feat megan thee stallion"},
		{"I'm Fine", "i m fine"},
		{"MIC Drop - Steve Aoki Remix", "mic drop steve aoki remix"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "bts|||dynamite", Key("Dynamite", "BTS"))
	assert.Equal(t, Key("DYNAMITE", "bts"), Key("dynamite", "BTS"))
}

func TestPick_ExactMatch(t *testing.T) {
	results := []Candidate{
		{ID: "wrong", Name: "Dynamite", Artist: "Taio Cruz"},
		{ID: "right", Name: "Dynamite", Artist: "BTS"},
	}

	id, ok := Pick("Dynamite", "BTS", results)
	assert.True(t, ok)
	assert.Equal(t, "right", id)
}

func TestPick_FeaturingArtistSuffix(t *testing.T) {
	results := []Candidate{
		{ID: "id1", Name: "Butter", Artist: "BTS feat. Megan Thee Stallion"},
	}

	id, ok := Pick("Butter", "BTS", results)
	assert.True(t, ok)
	assert.Equal(t, "id1", id)
}

func TestPick_TitlePunctuationVariant(t *testing.T) {
	results := []Candidate{
		{ID: "id1", Name: "Dynamite (Tropical Remix)", Artist: "BTS"},
	}

	id, ok := Pick("Dynamite", "BTS", results)
	assert.True(t, ok)
	assert.Equal(t, "id1", id)
}

func TestPick_FallbackToFirst(t *testing.T) {
	results := []Candidate{
		{ID: "first", Name: "Completely Different", Artist: "Someone Else"},
		{ID: "second", Name: "Also Different", Artist: "Another"},
	}

	id, ok := Pick("Dynamite", "BTS", results)
	assert.True(t, ok)
	assert.Equal(t, "first", id)
}

func TestPick_NoResults(t *testing.T) {
	_, ok := Pick("Dynamite", "BTS", nil)
	assert.False(t, ok)
}

func TestPick_EmptyQueryFieldsFallBack(t *testing.T) {
	results := []Candidate{
		{ID: "first", Name: "Dynamite", Artist: "BTS"},
	}

	// empty query strings never satisfy the substring test, so the
	// first-result fallback applies
	id, ok := Pick("", "", results)
	assert.True(t, ok)
	assert.Equal(t, "first", id)
}
