package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLandmarkTitle(t *testing.T) {
	cls := NewKeywordClassifier()

	landmarks := []string{
		"Eiffel Tower Escape",
		"Exploring the Sagrada Familia Cathedral",
		"Torre de Belém und mehr",
		"Visite du Musée du Louvre",
		"浅草寺めぐり",
	}
	for _, title := range landmarks {
		assert.True(t, cls.IsLandmarkTitle(title), title)
	}

	cities := []string{
		"Lisbon Trip",
		"A Weekend in Porto",
		"Tokyo Highlights",
		"",
	}
	for _, title := range cities {
		assert.False(t, cls.IsLandmarkTitle(title), title)
	}
}

func TestIsFoodActivity(t *testing.T) {
	cls := NewKeywordClassifier()

	tests := []struct {
		name     string
		activity Activity
		want     bool
	}{
		{"by type tag", Activity{Name: "Ramiro", Tags: []string{"restaurant"}}, true},
		{"by type tag case-insensitive", Activity{Name: "Ramiro", Tags: []string{"Restaurant"}}, true},
		{"by name keyword", Activity{Name: "Dinner at Botín"}, true},
		{"by description keyword", Activity{Name: "Mercado", Description: "Street food stalls and tapas"}, true},
		{"viewpoint", Activity{Name: "Miradouro da Graça", Tags: []string{"viewpoint"}}, false},
		{"museum", Activity{Name: "MAAT", Description: "Contemporary art museum"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cls.IsFoodActivity(tt.activity))
		})
	}
}
