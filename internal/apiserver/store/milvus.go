package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/ragops/pkg/component/milvus"
	"github.com/kart-io/ragops/pkg/utils/json"
)

// MilvusStore implements SearchStore on Milvus. Documents carry a zero
// vector so both collections share the same schema machinery; keyword search
// uses filtered queries over the content field.
type MilvusStore struct {
	client             *milvus.Client
	documentCollection string
	chunkCollection    string
	dimension          int
}

// MilvusConfig configures a MilvusStore.
type MilvusConfig struct {
	DocumentCollection string
	ChunkCollection    string
	Dimension          int
}

// NewMilvusStore creates a Milvus-backed SearchStore.
func NewMilvusStore(client *milvus.Client, cfg *MilvusConfig) *MilvusStore {
	return &MilvusStore{
		client:             client,
		documentCollection: cfg.DocumentCollection,
		chunkCollection:    cfg.ChunkCollection,
		dimension:          cfg.Dimension,
	}
}

var chunkMetaFields = []milvus.MetaField{
	{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 128},
	{Name: "chunk_index", DataType: entity.FieldTypeInt64},
	{Name: "total_chunks", DataType: entity.FieldTypeInt64},
	{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
	{Name: "metadata", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
}

var documentMetaFields = []milvus.MetaField{
	{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
	{Name: "metadata", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
	{Name: "chunk_count", DataType: entity.FieldTypeInt64},
	{Name: "indexed_at", DataType: entity.FieldTypeVarChar, MaxLen: 64},
}

// EnsureCollections creates both collections if missing.
func (s *MilvusStore) EnsureCollections(ctx context.Context) error {
	if err := s.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        s.documentCollection,
		Description: "source documents",
		Dimension:   s.dimension,
		MetaFields:  documentMetaFields,
	}); err != nil {
		return fmt.Errorf("ensure documents collection: %w", err)
	}

	if err := s.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        s.chunkCollection,
		Description: "document chunks",
		Dimension:   s.dimension,
		MetaFields:  chunkMetaFields,
	}); err != nil {
		return fmt.Errorf("ensure chunks collection: %w", err)
	}

	return nil
}

func marshalMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalMetadata(raw any) map[string]string {
	s, ok := raw.(string)
	if !ok || s == "" || s == "{}" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(s), &metadata); err != nil {
		return nil
	}
	return metadata
}

// escapeExpr escapes a string for use inside a Milvus filter literal.
func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// UpsertDocument replaces the document row and all of its chunks.
func (s *MilvusStore) UpsertDocument(ctx context.Context, doc *Document, chunks []*Chunk) error {
	expr := fmt.Sprintf(`document_id == "%s"`, escapeExpr(doc.ID))
	if err := s.client.Delete(ctx, s.chunkCollection, expr); err != nil {
		return fmt.Errorf("delete prior chunks of %s: %w", doc.ID, err)
	}
	docExpr := fmt.Sprintf(`id == "%s"`, escapeExpr(doc.ID))
	if err := s.client.Delete(ctx, s.documentCollection, docExpr); err != nil {
		return fmt.Errorf("delete prior document %s: %w", doc.ID, err)
	}

	metaJSON := marshalMetadata(doc.Metadata)

	docData := &milvus.InsertData{
		IDs:        []string{doc.ID},
		Embeddings: [][]float32{make([]float32, s.dimension)},
		Metadata: map[string][]any{
			"content":     {doc.Text},
			"metadata":    {metaJSON},
			"chunk_count": {int64(doc.ChunkCount)},
			"indexed_at":  {doc.IndexedAt.Format(time.RFC3339)},
		},
	}
	if err := s.client.Insert(ctx, s.documentCollection, docData); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}

	if len(chunks) == 0 {
		return nil
	}

	data := &milvus.InsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			"document_id":  make([]any, len(chunks)),
			"chunk_index":  make([]any, len(chunks)),
			"total_chunks": make([]any, len(chunks)),
			"content":      make([]any, len(chunks)),
			"metadata":     make([]any, len(chunks)),
		},
	}
	for i, chunk := range chunks {
		data.IDs[i] = chunk.ID
		data.Embeddings[i] = chunk.Embedding
		data.Metadata["document_id"][i] = chunk.DocumentID
		data.Metadata["chunk_index"][i] = int64(chunk.ChunkIndex)
		data.Metadata["total_chunks"][i] = int64(chunk.TotalChunks)
		data.Metadata["content"][i] = chunk.Content
		data.Metadata["metadata"][i] = metaJSON
	}

	if err := s.client.Insert(ctx, s.chunkCollection, data); err != nil {
		return fmt.Errorf("insert chunks of %s: %w", doc.ID, err)
	}

	return nil
}

// DeleteDocument removes the document and cascades to its chunks.
func (s *MilvusStore) DeleteDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`document_id == "%s"`, escapeExpr(documentID))
	if err := s.client.Delete(ctx, s.chunkCollection, expr); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}

	docExpr := fmt.Sprintf(`id == "%s"`, escapeExpr(documentID))
	if err := s.client.Delete(ctx, s.documentCollection, docExpr); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	return nil
}

var chunkOutputFields = []string{"document_id", "chunk_index", "total_chunks", "content", "metadata"}

func chunkFromMetadata(id string, score float32, meta map[string]any) *ChunkHit {
	hit := &ChunkHit{Score: score}
	hit.ID = id
	if v, ok := meta["document_id"].(string); ok {
		hit.DocumentID = v
	}
	if v, ok := meta["chunk_index"].(int64); ok {
		hit.ChunkIndex = int(v)
	}
	if v, ok := meta["total_chunks"].(int64); ok {
		hit.TotalChunks = int(v)
	}
	if v, ok := meta["content"].(string); ok {
		hit.Content = v
	}
	hit.Metadata = unmarshalMetadata(meta["metadata"])
	return hit
}

// SearchChunks runs a vector similarity search over the chunks collection.
func (s *MilvusStore) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]*ChunkHit, error) {
	results, err := s.client.Search(ctx, s.chunkCollection, embedding, topK, "", chunkOutputFields)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]*ChunkHit, len(results))
	for i, r := range results {
		hits[i] = chunkFromMetadata(r.ID, r.Score, r.Metadata)
	}
	return hits, nil
}

// KeywordSearchChunks matches chunks whose content contains the query.
func (s *MilvusStore) KeywordSearchChunks(ctx context.Context, query string, topK int) ([]*ChunkHit, error) {
	expr := fmt.Sprintf(`content like "%%%s%%"`, escapeExpr(query))
	results, err := s.client.Query(ctx, s.chunkCollection, expr, chunkOutputFields, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search chunks: %w", err)
	}

	hits := make([]*ChunkHit, len(results))
	for i, r := range results {
		hits[i] = chunkFromMetadata(r.ID, 0, r.Metadata)
	}
	return hits, nil
}

var documentOutputFields = []string{"content", "metadata", "chunk_count", "indexed_at"}

// KeywordSearchDocuments matches documents whose text contains the query.
func (s *MilvusStore) KeywordSearchDocuments(ctx context.Context, query string, topK int) ([]*Document, error) {
	expr := fmt.Sprintf(`content like "%%%s%%"`, escapeExpr(query))
	results, err := s.client.Query(ctx, s.documentCollection, expr, documentOutputFields, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search documents: %w", err)
	}

	docs := make([]*Document, len(results))
	for i, r := range results {
		doc := &Document{ID: r.ID}
		if v, ok := r.Metadata["content"].(string); ok {
			doc.Text = v
		}
		if v, ok := r.Metadata["chunk_count"].(int64); ok {
			doc.ChunkCount = int(v)
		}
		if v, ok := r.Metadata["indexed_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				doc.IndexedAt = t
			}
		}
		doc.Metadata = unmarshalMetadata(r.Metadata["metadata"])
		docs[i] = doc
	}
	return docs, nil
}

// Stats returns row counts of both collections.
func (s *MilvusStore) Stats(ctx context.Context) (*Stats, error) {
	docs, err := s.client.GetCollectionStats(ctx, s.documentCollection)
	if err != nil {
		return nil, fmt.Errorf("documents stats: %w", err)
	}
	chunks, err := s.client.GetCollectionStats(ctx, s.chunkCollection)
	if err != nil {
		return nil, fmt.Errorf("chunks stats: %w", err)
	}
	return &Stats{Documents: docs, Chunks: chunks}, nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ SearchStore = (*MilvusStore)(nil)
