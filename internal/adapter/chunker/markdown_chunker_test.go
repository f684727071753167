package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestChunkSmallSectionVerbatim(t *testing.T) {
	c := NewMarkdownChunker(600, 100, nil)

	body := "# Getting Started\nThis guide walks through setting up your first digital product listing."
	chunks := c.Chunk(body)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != body {
		t.Errorf("expected section kept verbatim, got %q", chunks[0].Content)
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
}

func TestChunkFloorDiscardsFragments(t *testing.T) {
	c := NewMarkdownChunker(600, 100, nil)

	chunks := c.Chunk("# A\nhi\n\n   \n\n# B\nok")
	if len(chunks) != 0 {
		t.Errorf("expected fragments below floor to be discarded, got %d chunks", len(chunks))
	}

	for _, chunk := range c.Chunk(strings.Repeat("word ", 200)) {
		if len(chunk.Content) < minChunkChars {
			t.Errorf("chunk below floor stored: %d chars", len(chunk.Content))
		}
	}
}

func TestChunkHeadingsAreHardBoundaries(t *testing.T) {
	c := NewMarkdownChunker(600, 100, nil)

	body := "# Pricing\nPricing your product well matters more than any other launch decision you make.\n" +
		"# Marketing\nMarketing starts long before launch day with an audience you already own."
	chunks := c.Chunk(body)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, "# Pricing") || strings.Contains(chunks[0].Content, "# Marketing") {
		t.Errorf("chunk straddles heading boundary: %q", chunks[0].Content)
	}
	if !strings.HasPrefix(chunks[1].Content, "# Marketing") {
		t.Errorf("expected second chunk to start at heading, got %q", chunks[1].Content)
	}
}

func TestChunkOverlapBetweenConsecutiveChunks(t *testing.T) {
	c := NewMarkdownChunker(25, 5, nil)

	paras := []string{
		"alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu",
		"nu xi omicron pi rho sigma tau upsilon phi chi psi omega alef bet",
		"gimel dalet he vav zayin het tet yod kaf lamed mem nun samekh ayin",
	}
	chunks := c.Chunk(strings.Join(paras, "\n\n"))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 0; i < len(chunks)-1; i++ {
		seed := tailWords(chunks[i].Content, 5)
		if !strings.HasPrefix(chunks[i+1].Content, seed) {
			t.Errorf("chunk %d does not start with tail of chunk %d: want prefix %q, got %q",
				i+1, i, seed, chunks[i+1].Content)
		}
	}
}

func TestChunkNoOverlapAcrossHeading(t *testing.T) {
	c := NewMarkdownChunker(25, 5, nil)

	body := "# One\nalpha beta gamma delta epsilon zeta eta theta iota kappa lambda\n" +
		"# Two\nnu xi omicron pi rho sigma tau upsilon phi chi psi omega alef bet"
	chunks := c.Chunk(body)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[1].Content, "lambda") {
		t.Errorf("overlap leaked across heading boundary: %q", chunks[1].Content)
	}
}

func TestChunkOversizedParagraphNotSubdivided(t *testing.T) {
	c := NewMarkdownChunker(25, 5, nil)

	para := strings.TrimSpace(strings.Repeat("oversized paragraph content ", 20))
	chunks := c.Chunk(para)

	if len(chunks) != 1 {
		t.Fatalf("expected oversized paragraph as a single chunk, got %d", len(chunks))
	}
	if chunks[0].Content != para {
		t.Errorf("oversized paragraph was altered")
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := NewMarkdownChunker(40, 10, nil)
	body := "# Guide\n" + strings.Repeat("some repeated sentence about product launches and pricing strategy. ", 30)

	first := c.Chunk(body)
	second := c.Chunk(body)
	if !reflect.DeepEqual(first, second) {
		t.Error("chunking is not deterministic")
	}

	for i, chunk := range first {
		if chunk.Index != i {
			t.Errorf("expected sequential index %d, got %d", i, chunk.Index)
		}
	}
}

func TestChunkCustomEstimator(t *testing.T) {
	words := func(text string) int { return len(strings.Fields(text)) }
	c := NewMarkdownChunker(10, 2, words)

	body := "one two three four five six seven eight nine ten eleven twelve\n\n" +
		"thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty"
	chunks := c.Chunk(body)

	if len(chunks) != 2 {
		t.Fatalf("expected custom estimator to force a split, got %d chunks", len(chunks))
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("expected 2 tokens for 8 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}
