// Package chunker splits markdown bodies into bounded, overlapping segments
// sized for embedding.
package chunker

import (
	"strings"

	"kb/internal/domain"
	"kb/internal/port"
)

// minChunkChars is the floor below which a chunk is discarded. Near-empty
// fragments produce low-signal vectors that pollute search results.
const minChunkChars = 50

// EstimateTokens approximates token count with a fixed 4-characters-per-token
// ratio. Exactness is not required, only a consistent sizing heuristic.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// MarkdownChunker splits at heading boundaries first so a chunk does not
// straddle two unrelated sections, then accumulates paragraphs up to the
// target size with a trailing-word overlap between consecutive chunks.
//
// Sizing uses the token estimate while the overlap seed is word-based; the
// mismatch mirrors the observed ingestion behavior and is intentional.
type MarkdownChunker struct {
	targetTokens int
	overlapWords int
	estimate     port.TokenEstimator
}

func NewMarkdownChunker(targetTokens, overlapWords int, estimate port.TokenEstimator) *MarkdownChunker {
	if targetTokens <= 0 {
		targetTokens = 600
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if estimate == nil {
		estimate = EstimateTokens
	}
	return &MarkdownChunker{
		targetTokens: targetTokens,
		overlapWords: overlapWords,
		estimate:     estimate,
	}
}

// Chunk splits body into ordered chunks. Output is deterministic for a given
// input and configuration.
func (c *MarkdownChunker) Chunk(body string) []domain.Chunk {
	var texts []string
	for _, section := range splitSections(body) {
		if c.estimate(section) <= c.targetTokens {
			texts = append(texts, section)
			continue
		}
		texts = append(texts, c.splitSection(section)...)
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if len(text) < minChunkChars {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Index:      len(chunks),
			Content:    text,
			TokenCount: c.estimate(text),
		})
	}
	return chunks
}

// splitSection breaks an oversized section at paragraph boundaries,
// accumulating paragraphs until the next one would exceed the target size.
// Each emitted chunk seeds the next with its trailing words. A single
// paragraph larger than the target is emitted as one oversized chunk rather
// than subdivided.
func (c *MarkdownChunker) splitSection(section string) []string {
	var chunks []string
	var current string

	for _, para := range splitParagraphs(section) {
		if current == "" {
			current = para
			continue
		}
		joined := current + "\n\n" + para
		if c.estimate(joined) > c.targetTokens {
			chunks = append(chunks, current)
			seed := tailWords(current, c.overlapWords)
			if seed != "" {
				current = seed + "\n\n" + para
			} else {
				current = para
			}
			continue
		}
		current = joined
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSections divides the body at heading lines. Headings are hard
// boundaries: no overlap is carried across them. A heading line starts its
// section.
func splitSections(body string) []string {
	lines := strings.Split(body, "\n")

	var sections []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	return sections
}

// splitParagraphs splits a section into blank-line-separated blocks.
func splitParagraphs(section string) []string {
	var paras []string
	for _, block := range strings.Split(section, "\n\n") {
		if p := strings.TrimSpace(block); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// tailWords returns the last n whitespace-separated words of text.
func tailWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
