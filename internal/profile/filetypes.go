package profile

import "math/rand"

// SizeBand is a byte-size range with a selection weight. Most uploads land
// in the smallest band so the object count stays realistic.
type SizeBand struct {
	Min    int64
	Max    int64
	Weight float64
}

// TypeSpec describes how payloads of one file type look on the wire.
type TypeSpec struct {
	Extensions []string
	Bands      []SizeBand
}

// PickExtension draws a plausible extension for the type.
func (s TypeSpec) PickExtension(rng *rand.Rand) string {
	return s.Extensions[rng.Intn(len(s.Extensions))]
}

// PickSize draws a payload size: weighted band, then uniform within it.
func (s TypeSpec) PickSize(rng *rand.Rand) int64 {
	var total float64
	for _, b := range s.Bands {
		total += b.Weight
	}
	x := rng.Float64() * total
	band := s.Bands[len(s.Bands)-1]
	for _, b := range s.Bands {
		x -= b.Weight
		if x < 0 {
			band = b
			break
		}
	}
	if band.Max <= band.Min {
		return band.Min
	}
	return band.Min + rng.Int63n(band.Max-band.Min+1)
}

const (
	kb = 1024
	mb = 1024 * 1024
)

var typeSpecs = map[FileType]TypeSpec{
	TypeCode: {
		Extensions: []string{".py", ".js", ".html", ".css", ".rs", ".go", ".java", ".cpp", ".c", ".json", ".xml", ".yaml", ".toml"},
		Bands: []SizeBand{
			{Min: 100, Max: 10 * kb, Weight: 0.85},
			{Min: 10 * kb, Max: 100 * kb, Weight: 0.12},
			{Min: 100 * kb, Max: 500 * kb, Weight: 0.03},
		},
	},
	TypeDocuments: {
		Extensions: []string{".pdf", ".docx", ".txt", ".md", ".xlsx", ".pptx", ".csv", ".rtf"},
		Bands: []SizeBand{
			{Min: kb, Max: 100 * kb, Weight: 0.8},
			{Min: 100 * kb, Max: 2 * mb, Weight: 0.15},
			{Min: 2 * mb, Max: 10 * mb, Weight: 0.05},
		},
	},
	TypeImages: {
		Extensions: []string{".jpg", ".png", ".gif", ".svg", ".bmp", ".webp", ".tiff"},
		Bands: []SizeBand{
			{Min: kb, Max: 500 * kb, Weight: 0.8},
			{Min: 500 * kb, Max: 5 * mb, Weight: 0.15},
			{Min: 5 * mb, Max: 20 * mb, Weight: 0.05},
		},
	},
	TypeArchives: {
		Extensions: []string{".zip", ".tar.gz", ".rar", ".7z", ".tar", ".gz"},
		Bands: []SizeBand{
			{Min: 100 * kb, Max: 5 * mb, Weight: 0.7},
			{Min: 5 * mb, Max: 50 * mb, Weight: 0.25},
			{Min: 50 * mb, Max: 200 * mb, Weight: 0.05},
		},
	},
	TypeMedia: {
		Extensions: []string{".mp4", ".avi", ".mov", ".mkv", ".mp3", ".wav", ".flac", ".ogg"},
		Bands: []SizeBand{
			{Min: 500 * kb, Max: 10 * mb, Weight: 0.75},
			{Min: 10 * mb, Max: 100 * mb, Weight: 0.2},
			{Min: 100 * mb, Max: 500 * mb, Weight: 0.05},
		},
	},
}

// Spec returns the wire characteristics for a file type. Unknown types get
// the documents spec so a bad preference map cannot crash a worker.
func Spec(t FileType) TypeSpec {
	if s, ok := typeSpecs[t]; ok {
		return s
	}
	return typeSpecs[TypeDocuments]
}

// Types lists every known file type.
func Types() []FileType {
	return []FileType{TypeCode, TypeDocuments, TypeImages, TypeArchives, TypeMedia}
}
