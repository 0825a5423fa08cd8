package moderation

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Stage is one pure text transform of the pipeline.
type Stage func(string) string

// Result is the outcome of moderating one message. Suppressed messages must
// be dropped silently; Text is then meaningless.
type Result struct {
	Text       string `json:"text"`
	Suppressed bool   `json:"suppressed"`
	Changed    bool   `json:"changed"`
}

var (
	profanityRe = compileWordList(profanity)
	harmfulRes  = compileAll(harmfulPatterns)
	linkRe      = regexp.MustCompile(linkPattern)
	markerRe    = regexp.MustCompile(regexp.QuoteMeta(BlockMarker) + "|" + regexp.QuoteMeta(LinkMarker))
)

func compileWordList(words []string) *regexp.Regexp {
	sorted := append([]string(nil), words...)
	// longest first so a stem never shadows its inflection
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, w := range sorted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// MaskProfanity replaces each block-listed word with MaskToken.
func MaskProfanity(text string) string {
	return profanityRe.ReplaceAllLiteralString(text, MaskToken)
}

// BlockHarmful replaces every harmful-pattern match with BlockMarker.
func BlockHarmful(text string) string {
	for _, re := range harmfulRes {
		text = re.ReplaceAllLiteralString(text, BlockMarker)
	}
	return text
}

// StripLinks replaces URL-like tokens with LinkMarker.
func StripLinks(text string) string {
	return linkRe.ReplaceAllLiteralString(text, LinkMarker)
}

// NormalizeCaps lowercases messages longer than 10 characters where more
// than half of the characters are A-Z. The ratio is taken over the whole
// message; marker tokens keep their case.
func NormalizeCaps(text string) string {
	n := utf8.RuneCountInString(text)
	if n <= 10 {
		return text
	}
	caps := 0
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			caps++
		}
	}
	if float64(caps)/float64(n) <= 0.5 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range markerRe.FindAllStringIndex(text, -1) {
		b.WriteString(strings.ToLower(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ToLower(text[last:]))
	return b.String()
}

// Pipeline applies stages in order.
type Pipeline struct {
	stages []Stage
}

// DefaultPipeline is profanity, harmful patterns, links, then caps.
func DefaultPipeline() *Pipeline {
	return NewPipeline(MaskProfanity, BlockHarmful, StripLinks, NormalizeCaps)
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Moderate trims raw and runs every stage over it.
func (p *Pipeline) Moderate(raw string) Result {
	text := strings.TrimSpace(raw)
	in := text
	for _, stage := range p.stages {
		text = stage(text)
	}
	text = strings.TrimSpace(text)
	return Result{Text: text, Suppressed: suppressed(text), Changed: text != in}
}

// Moderate runs the default pipeline.
func Moderate(raw string) Result {
	return defaultPipeline.Moderate(raw)
}

var defaultPipeline = DefaultPipeline()

// suppressed is true for empty output and for output that is a single block marker.
func suppressed(text string) bool {
	return text == "" || text == BlockMarker
}
