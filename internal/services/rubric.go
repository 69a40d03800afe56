package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// RubricService is the vector-backed rubric knowledge base. Judge prompts are
// grounded with guidance retrieved from it; evaluation proceeds with empty
// context when retrieval fails, so it never blocks a job.
type RubricService interface {
	InitCollection() error
	UpsertGuidance(ctx context.Context, docID, docType, text string, embedding []float32) error
	RetrieveGuidance(ctx context.Context, queryText string, docTypes []string, limit int) (string, error)
}

// GuidanceChunk is one retrieved piece of rubric guidance.
type GuidanceChunk struct {
	ID      string
	Score   float32
	Text    string
	DocType string
}

type rubricService struct {
	client         *qdrant.Client
	provider       ModelProvider
	logger         *zap.Logger
	collectionName string
	vectorSize     uint64
}

func NewRubricService(urlStr, apiKey, collectionName string, provider ModelProvider, logger *zap.Logger) (RubricService, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// Default to Qdrant's gRPC port.
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &rubricService{
		client:         client,
		provider:       provider,
		logger:         logger,
		collectionName: collectionName,
		vectorSize:     768, // text-embedding-004 output size
	}, nil
}

// InitCollection implements RubricService.
func (r *rubricService) InitCollection() error {
	ctx := context.Background()

	exists, err := r.client.CollectionExists(ctx, r.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     r.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	r.logger.Info("rubric collection created", zap.String("collection", r.collectionName))
	return nil
}

// UpsertGuidance implements RubricService.
func (r *rubricService) UpsertGuidance(ctx context.Context, docID, docType, text string, embedding []float32) error {
	pointID := uuid.New()

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(pointID.ID())),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"doc_id":   docID,
			"doc_type": docType,
			"text":     text,
		}),
	}

	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert guidance: %w", err)
	}

	return nil
}

// RetrieveGuidance implements RubricService. It embeds the query, searches
// each doc type, and flattens the hits into prompt-ready text.
func (r *rubricService) RetrieveGuidance(ctx context.Context, queryText string, docTypes []string, limit int) (string, error) {
	embedding, err := r.provider.GenerateEmbedding(ctx, queryText)
	if err != nil {
		return "", fmt.Errorf("failed to embed retrieval query: %w", err)
	}

	var chunks []GuidanceChunk
	for _, docType := range docTypes {
		results, err := r.searchSimilar(ctx, embedding, docType, limit)
		if err != nil {
			r.logger.Warn("rubric search failed",
				zap.String("doc_type", docType),
				zap.Error(err))
			continue
		}
		chunks = append(chunks, results...)
	}

	return FormatRubricContext(chunks), nil
}

func (r *rubricService) searchSimilar(ctx context.Context, queryEmbedding []float32, docType string, limit int) ([]GuidanceChunk, error) {
	var filter *qdrant.Filter
	if docType != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("doc_type", docType),
			},
		}
	}

	searchResult, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var chunks []GuidanceChunk
	for _, point := range searchResult {
		chunk := GuidanceChunk{Score: point.Score}

		if docID, ok := point.Payload["doc_id"]; ok {
			if val, ok := docID.GetKind().(*qdrant.Value_StringValue); ok {
				chunk.ID = val.StringValue
			}
		}
		if text, ok := point.Payload["text"]; ok {
			if val, ok := text.GetKind().(*qdrant.Value_StringValue); ok {
				chunk.Text = val.StringValue
			}
		}
		if dtype, ok := point.Payload["doc_type"]; ok {
			if val, ok := dtype.GetKind().(*qdrant.Value_StringValue); ok {
				chunk.DocType = val.StringValue
			}
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
