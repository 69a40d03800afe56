package services

import "strings"

// TextChunker splits rubric documents into overlapping chunks sized for
// embedding.
type TextChunker interface {
	ChunkText(text string, maxChunkSize, overlap int) []string
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// ChunkText implements TextChunker. Paragraphs are packed greedily into
// chunks; a paragraph longer than the budget is split on sentence boundaries.
// Each chunk starts with the tail of the previous one so retrieval does not
// lose context at chunk edges.
func (tc *textChunker) ChunkText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkSize {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, splitSentences(para)...)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		tail := chunkTail(current.String(), overlap)
		current.Reset()
		if tail != "" {
			current.WriteString(tail)
		}
	}

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece)+1 > maxChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var sentences []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

func chunkTail(text string, n int) string {
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return ""
	}
	return string(runes[len(runes)-n:])
}
