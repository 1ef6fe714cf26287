package similarity

import (
	"strings"

	"github.com/NanamiAkari/attire-ai-explorer/tags"
)

// keyWeights assigns each attribute key its importance in tag similarity.
// Keys absent from the table weigh 1.0.
var keyWeights = map[string]float64{
	tags.KeyStyle:       3,
	tags.KeyCategory:    3,
	tags.KeyColor:       2,
	tags.KeyCollar:      2,
	tags.KeySleeve:      2,
	tags.KeyCollarShape: 1.5,
	tags.KeySleeveShape: 1.5,
	tags.KeyPattern:     1.5,
	tags.KeyLength:      1.5,
	tags.KeyFabric:      1,
	tags.KeyMaterial:    1,
	tags.KeyOccasion:    1,
	tags.KeyFit:         1,
}

func keyWeight(key string) float64 {
	if w, ok := keyWeights[key]; ok {
		return w
	}
	return 1.0
}

// colorFamilies groups values that should count as a partial color match even
// when the literal strings differ ("jet black" vs "black cotton").
var colorFamilies = []string{
	"black", "white", "red", "blue", "green", "yellow",
	"gray", "grey", "pink", "purple", "brown", "beige", "navy",
}

func sameColorFamily(a, b string) bool {
	for _, family := range colorFamilies {
		if strings.Contains(a, family) && strings.Contains(b, family) {
			return true
		}
	}
	return false
}

// TagSimilarity computes a weighted attribute-overlap score in [0,100]
// between two garment tag sets. Only keys populated with a recognized value
// on both sides participate; exact matches earn full key weight, substring
// containment 0.6x, and a shared color family 0.4x. Returns 0 when no key is
// comparable.
func TagSimilarity(a, b tags.GarmentTags) float64 {
	fieldsA := a.Fields()
	fieldsB := b.Fields()

	var totalWeight, matchScore float64
	for key, rawA := range fieldsA {
		rawB := fieldsB[key]
		if !tags.IsPopulated(rawA) || !tags.IsPopulated(rawB) {
			continue
		}

		va := strings.ToLower(strings.TrimSpace(rawA))
		vb := strings.ToLower(strings.TrimSpace(rawB))

		w := keyWeight(key)
		totalWeight += w

		switch {
		case va == vb:
			matchScore += w
		case strings.Contains(va, vb) || strings.Contains(vb, va):
			matchScore += 0.6 * w
		case sameColorFamily(va, vb):
			matchScore += 0.4 * w
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return matchScore / totalWeight * 100
}
