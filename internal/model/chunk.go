package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MergeStrategy governs what happens when an ingested chunk collides with a stored one.
// Chosen per ingestion call, not per chunk.
type MergeStrategy string

const (
	MergeSkip     MergeStrategy = "skip"     // Never touch existing
	MergeUpdate   MergeStrategy = "update"   // Overwrite payload, keep vector if content unchanged
	MergeMerge    MergeStrategy = "merge"    // Union categories, keep newest content
	MergePreserve MergeStrategy = "preserve" // Keep existing entirely, record the duplicate
)

// ParseMergeStrategy validates a strategy name. Empty means skip.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeSkip:
		return MergeSkip, nil
	case MergeUpdate:
		return MergeUpdate, nil
	case MergeMerge:
		return MergeMerge, nil
	case MergePreserve:
		return MergePreserve, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q (supported: skip, update, merge, preserve)", s)
	}
}

// Document is a finalized knowledge item ready for ingestion
type Document struct {
	ID           string            `json:"id" yaml:"id"`
	SourceFile   string            `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	Content      string            `json:"content,omitempty" yaml:"content,omitempty"` // Used when the document is ingested as a single unit
	Categories   []string          `json:"categories,omitempty" yaml:"categories,omitempty"`
	AnalysisType string            `json:"analysis_type,omitempty" yaml:"analysis_type,omitempty"`
	Confidence   *ConfidenceResult `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ChunkRecord is one content fragment of a document
type ChunkRecord struct {
	DocumentID string            `json:"document_id" yaml:"document_id"`
	Index      int               `json:"index" yaml:"index"` // Zero-based, stable within a document
	Text       string            `json:"text" yaml:"text"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DedupKey identifies a logical slot in the vector store: (document, chunk index)
// when chunking is in effect, or the document alone for single-unit ingestion.
type DedupKey struct {
	DocumentID string `json:"document_id"`
	ChunkIndex *int   `json:"chunk_index,omitempty"`
}

// ChunkKey builds the key for a chunked slot
func ChunkKey(documentID string, index int) DedupKey {
	return DedupKey{DocumentID: documentID, ChunkIndex: &index}
}

// DocumentKey builds the key for a document ingested as one unit
func DocumentKey(documentID string) DedupKey {
	return DedupKey{DocumentID: documentID}
}

// Chunked reports whether the key addresses a chunk slot
func (k DedupKey) Chunked() bool {
	return k.ChunkIndex != nil
}

// Index returns the chunk index, or -1 for whole-document keys
func (k DedupKey) Index() int {
	if k.ChunkIndex == nil {
		return -1
	}
	return *k.ChunkIndex
}

// String renders the key as "doc#index" or "doc"
func (k DedupKey) String() string {
	if k.ChunkIndex == nil {
		return k.DocumentID
	}
	return k.DocumentID + "#" + strconv.Itoa(*k.ChunkIndex)
}

// Equal compares two keys by value
func (k DedupKey) Equal(other DedupKey) bool {
	if k.DocumentID != other.DocumentID {
		return false
	}
	if k.ChunkIndex == nil || other.ChunkIndex == nil {
		return k.ChunkIndex == nil && other.ChunkIndex == nil
	}
	return *k.ChunkIndex == *other.ChunkIndex
}

// Payload is the stored representation of a chunk in the vector store.
// Field names follow the knowledge_consolidator collection layout.
type Payload struct {
	DocumentID      string            `json:"documentId"`
	ChunkIndex      *int              `json:"chunkIndex,omitempty"`
	Content         string            `json:"content"`
	ContentHash     string            `json:"contentHash"`
	Categories      []string          `json:"categories,omitempty"`
	AnalysisType    string            `json:"analysisType,omitempty"`
	SourceFile      string            `json:"sourceFile,omitempty"`
	Confidence      float64           `json:"confidence"`
	ConfidenceLabel string            `json:"confidenceLabel,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Key returns the dedup key the payload occupies
func (p Payload) Key() DedupKey {
	return DedupKey{DocumentID: p.DocumentID, ChunkIndex: p.ChunkIndex}
}

// ContentHash hashes chunk text for change detection and cache keys
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PayloadFor builds the payload for a chunk, copying the parent's categories,
// analysis type and confidence at ingestion time
func PayloadFor(doc Document, key DedupKey, text string, chunkMeta map[string]string) Payload {
	meta := make(map[string]string, len(doc.Metadata)+len(chunkMeta))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	for k, v := range chunkMeta {
		meta[k] = v
	}
	if len(meta) == 0 {
		meta = nil
	}

	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	p := Payload{
		DocumentID:   doc.ID,
		ChunkIndex:   key.ChunkIndex,
		Content:      text,
		ContentHash:  ContentHash(text),
		Categories:   NormalizeCategories(doc.Categories),
		AnalysisType: doc.AnalysisType,
		SourceFile:   doc.SourceFile,
		UpdatedAt:    updated,
		Metadata:     meta,
	}
	if doc.Confidence != nil {
		p.Confidence = doc.Confidence.FinalScore
		p.ConfidenceLabel = string(doc.Confidence.Label)
	}
	return p
}
