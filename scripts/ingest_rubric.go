package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"speech-evaluator/internal/config"
	"speech-evaluator/internal/services"
)

// Loads the rubric and guidance PDFs into the Qdrant knowledge base so judge
// prompts can be grounded with retrieved rubric text.
func main() {
	cfg := config.Load()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	provider, err := services.NewGeminiProvider(
		cfg.Gemini.APIKey,
		cfg.Worker.RetryMaxAttempts,
		cfg.Worker.RetryInitialDelay,
		log,
	)
	if err != nil {
		log.Fatal("failed to initialize model provider", zap.Error(err))
	}

	rubricService, err := services.NewRubricService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
		provider,
		log,
	)
	if err != nil {
		log.Fatal("failed to initialize rubric knowledge base", zap.Error(err))
	}
	if err := rubricService.InitCollection(); err != nil {
		log.Fatal("failed to initialize rubric collection", zap.Error(err))
	}

	parser := services.NewRubricPDFParser()
	chunker := services.NewTextChunker()
	ctx := context.Background()

	documents := []struct {
		Path    string
		DocType string
		Name    string
	}{
		{
			Path:    "./reference_docs/scoring_rubric.pdf",
			DocType: "scoring_rubric",
			Name:    "Speech Scoring Rubric",
		},
		{
			Path:    "./reference_docs/delivery_guide.pdf",
			DocType: "delivery_guide",
			Name:    "Delivery and Body Language Guide",
		},
		{
			Path:    "./reference_docs/theme_material.pdf",
			DocType: "theme_material",
			Name:    "Theme Background Material",
		},
	}

	failCount := 0

	for _, doc := range documents {
		docLog := log.With(zap.String("name", doc.Name), zap.String("path", doc.Path))

		if _, err := os.Stat(doc.Path); os.IsNotExist(err) {
			docLog.Warn("file not found, skipping")
			failCount++
			continue
		}

		content, err := parser.ExtractText(doc.Path)
		if err != nil {
			docLog.Error("failed to extract text", zap.Error(err))
			failCount++
			continue
		}

		chunks := chunker.ChunkText(content.Text, 1000, 200)
		docLog.Info("document chunked",
			zap.Int("pages", content.PageCount),
			zap.Int("chunks", len(chunks)))

		stored := 0
		for i, chunk := range chunks {
			embedding, err := provider.GenerateEmbedding(ctx, chunk)
			if err != nil {
				docLog.Error("failed to embed chunk", zap.Int("chunk", i+1), zap.Error(err))
				continue
			}

			docID := fmt.Sprintf("%s_chunk_%d", doc.DocType, i)
			if err := rubricService.UpsertGuidance(ctx, docID, doc.DocType, chunk, embedding); err != nil {
				docLog.Error("failed to store chunk", zap.Int("chunk", i+1), zap.Error(err))
				continue
			}
			stored++
		}

		docLog.Info("document ingested", zap.Int("stored", stored), zap.Int("total", len(chunks)))
	}

	if failCount > 0 {
		log.Warn("some documents failed to ingest", zap.Int("failed", failCount))
		os.Exit(1)
	}

	log.Info("all documents ingested")
}
