package worker

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/FairForge/trafficgen/internal/profile"
)

// maxMaterialized caps how much payload we build in memory. Anything
// bigger streams from a pseudorandom reader instead; a 500MB media upload
// must not allocate 500MB.
const maxMaterialized = 10 * 1024 * 1024

var codeLines = []string{
	"func process(items []string) error {",
	"\tfor _, item := range items {",
	"\t\tif err := handle(item); err != nil {",
	"\t\t\treturn err",
	"\t\t}",
	"\t}",
	"\treturn nil",
	"}",
	"",
	"type handler struct {",
	"\tname  string",
	"\tcount int",
	"}",
	"",
}

var proseWords = []string{
	"quarterly", "report", "summary", "analysis", "review", "project",
	"milestone", "delivery", "schedule", "budget", "forecast", "team",
	"customer", "deployment", "release", "incident", "retrospective",
}

// newPayload returns a reader producing exactly size bytes appropriate for
// the file type. Text types get readable content; binary types get
// deterministic pseudorandom bytes without materializing the payload.
func newPayload(t profile.FileType, size int64, seed int64) io.Reader {
	if size > maxMaterialized {
		return io.LimitReader(rand.New(rand.NewSource(seed)), size)
	}
	switch t {
	case profile.TypeCode:
		return strings.NewReader(textPayload(codeSource, size, seed))
	case profile.TypeDocuments:
		return strings.NewReader(textPayload(proseSource, size, seed))
	default:
		return io.LimitReader(rand.New(rand.NewSource(seed)), size)
	}
}

type textSource func(rng *rand.Rand) string

func codeSource(rng *rand.Rand) string {
	return codeLines[rng.Intn(len(codeLines))] + "\n"
}

func proseSource(rng *rand.Rand) string {
	n := 6 + rng.Intn(10)
	words := make([]string, n)
	for i := range words {
		words[i] = proseWords[rng.Intn(len(proseWords))]
	}
	return strings.Join(words, " ") + ".\n"
}

// textPayload assembles readable text of exactly size bytes.
func textPayload(src textSource, size int64, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.Grow(int(size))
	for int64(b.Len()) < size {
		b.WriteString(src(rng))
	}
	return b.String()[:size]
}

// objectKey builds the storage key for a new upload. The user ID prefix is
// the namespace boundary: every object a worker touches lives under it.
func objectKey(userID string, t profile.FileType, unixts int64, id, ext string) string {
	return fmt.Sprintf("%s/%s/%d-%s%s", userID, t, unixts, id, ext)
}
