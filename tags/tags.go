// Package tags defines the closed set of garment attributes produced by the
// external AI tagging collaborator, and the client used to obtain them.
package tags

import "strings"

// Unrecognized is the sentinel the tagging collaborator returns for an
// attribute it could not determine. Unrecognized values never participate in
// tag similarity scoring.
const Unrecognized = "unrecognized"

// Attribute keys. The set is closed: every tag payload carries exactly these
// thirteen attributes, each either a concrete value or Unrecognized.
const (
	KeyStyle       = "style"
	KeyCategory    = "category"
	KeyColor       = "color"
	KeyPattern     = "pattern"
	KeyCollar      = "collar"
	KeySleeve      = "sleeve"
	KeyCollarShape = "collarShape"
	KeySleeveShape = "sleeveShape"
	KeyLength      = "length"
	KeyFit         = "fit"
	KeyFabric      = "fabric"
	KeyMaterial    = "material"
	KeyOccasion    = "occasion"
)

// GarmentTags is the structured label set for one garment image. Read-only
// input to the re-ranker; the engine never mutates it.
type GarmentTags struct {
	Style       string `json:"style"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Pattern     string `json:"pattern"`
	Collar      string `json:"collar"`
	Sleeve      string `json:"sleeve"`
	CollarShape string `json:"collarShape"`
	SleeveShape string `json:"sleeveShape"`
	Length      string `json:"length"`
	Fit         string `json:"fit"`
	Fabric      string `json:"fabric"`
	Material    string `json:"material"`
	Occasion    string `json:"occasion"`
}

// LabeledImage couples an image reference with its tag set.
type LabeledImage struct {
	ID       string      `json:"id"`
	ImageURL string      `json:"image_url"`
	Tags     GarmentTags `json:"tags"`
}

// Fields returns the attributes as a key/value map in the closed key set.
func (t GarmentTags) Fields() map[string]string {
	return map[string]string{
		KeyStyle:       t.Style,
		KeyCategory:    t.Category,
		KeyColor:       t.Color,
		KeyPattern:     t.Pattern,
		KeyCollar:      t.Collar,
		KeySleeve:      t.Sleeve,
		KeyCollarShape: t.CollarShape,
		KeySleeveShape: t.SleeveShape,
		KeyLength:      t.Length,
		KeyFit:         t.Fit,
		KeyFabric:      t.Fabric,
		KeyMaterial:    t.Material,
		KeyOccasion:    t.Occasion,
	}
}

// IsPopulated reports whether a raw attribute value carries usable content.
func IsPopulated(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v != "" && v != Unrecognized
}

// Normalize fills every empty attribute with the Unrecognized sentinel so a
// partially filled payload round-trips with a stable shape.
func (t GarmentTags) Normalize() GarmentTags {
	fill := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return Unrecognized
		}
		return v
	}
	return GarmentTags{
		Style:       fill(t.Style),
		Category:    fill(t.Category),
		Color:       fill(t.Color),
		Pattern:     fill(t.Pattern),
		Collar:      fill(t.Collar),
		Sleeve:      fill(t.Sleeve),
		CollarShape: fill(t.CollarShape),
		SleeveShape: fill(t.SleeveShape),
		Length:      fill(t.Length),
		Fit:         fill(t.Fit),
		Fabric:      fill(t.Fabric),
		Material:    fill(t.Material),
		Occasion:    fill(t.Occasion),
	}
}
