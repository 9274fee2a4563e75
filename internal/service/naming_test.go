package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderGroupName(t *testing.T) {
	tests := []struct {
		tpl    string
		number int
		want   string
	}{
		{"Group #{group_number}", 7, "Group 7"},
		{"Group {group_number}", 7, "Group 7"},
		{"VIP {group_number} - {group_number}", 3, "VIP 3 - 3"},
		{"Static name", 2, "Static name"},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderGroupName(tt.tpl, tt.number))
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Promo", "promo"},
		{"spaces and punctuation", "  Black Friday!! 2024 ", "black-friday-2024"},
		{"accents folded", "Promoção Verão", "promocao-verao"},
		{"nothing usable", "!!!", "campaign"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}

	long := Slugify("a very long campaign name that keeps going well past the limit we allow for slugs")
	assert.LessOrEqual(t, len(long), maxSlugLength)
	assert.NotEqual(t, '-', rune(long[len(long)-1]))
}

func TestSlugCandidate(t *testing.T) {
	assert.Equal(t, "promo", slugCandidate("promo", 0))
	assert.Equal(t, "promo-1", slugCandidate("promo", 1))
	assert.Equal(t, "promo-12", slugCandidate("promo", 12))
}
