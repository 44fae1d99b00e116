package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SnapshotVersion is written into every snapshot's metadata.
const SnapshotVersion = "2.0"

// DocumentData is the field map of a stored document.
type DocumentData = map[string]interface{}

// DocumentSet maps document id to document data within one collection.
type DocumentSet map[string]DocumentData

// DocumentEntry is one document of a flat collection as written in a snapshot.
type DocumentEntry struct {
	ID   string       `json:"id"`
	Data DocumentData `json:"data"`
}

// SnapshotMetadata describes a snapshot document.
type SnapshotMetadata struct {
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Collections    []string  `json:"collections"`
	Version        string    `json:"version"`
	TotalDocuments int       `json:"totalDocuments"`
}

// SnapshotDocument is the serialised unit written to blob storage.
type SnapshotDocument struct {
	Metadata SnapshotMetadata               `json:"metadata"`
	Data     map[string]*CollectionSnapshot `json:"data"`
}

// OrderedKeys returns the collection keys in metadata order, followed by any
// extra keys present in Data in lexical order.
func (s *SnapshotDocument) OrderedKeys() []string {
	keys := make([]string, 0, len(s.Data))
	seen := make(map[string]bool, len(s.Data))
	for _, key := range s.Metadata.Collections {
		if _, ok := s.Data[key]; ok && !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	var extra []string
	for key := range s.Data {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// CountDocuments sums documents across every captured collection. Error
// markers contribute nothing.
func (s *SnapshotDocument) CountDocuments() int {
	total := 0
	for _, c := range s.Data {
		if c == nil || c.Failed() {
			continue
		}
		total += c.DocumentCount()
	}
	return total
}

// CountConductors returns the number of conductor trees in the snapshot.
func (s *SnapshotDocument) CountConductors() int {
	total := 0
	for _, c := range s.Data {
		if c != nil && c.IsForest() {
			total += len(c.Conductors)
		}
	}
	return total
}

// CollectionSnapshot holds either a flat list of documents, a conductor forest
// or an error marker for a collection that could not be captured.
type CollectionSnapshot struct {
	CollectionPath string
	Count          int
	Documents      []DocumentEntry
	Conductors     map[string]*ConductorSnapshot
	Error          string
}

// NewFlatSnapshot wraps flat documents.
func NewFlatSnapshot(path string, docs []DocumentEntry) *CollectionSnapshot {
	if docs == nil {
		docs = []DocumentEntry{}
	}
	return &CollectionSnapshot{CollectionPath: path, Count: len(docs), Documents: docs}
}

// NewForestSnapshot wraps a conductor forest.
func NewForestSnapshot(path string, conductors map[string]*ConductorSnapshot) *CollectionSnapshot {
	if conductors == nil {
		conductors = map[string]*ConductorSnapshot{}
	}
	if path == "" {
		path = ConductorForestPath
	}
	return &CollectionSnapshot{CollectionPath: path, Count: len(conductors), Conductors: conductors}
}

// NewErrorSnapshot records that a collection failed to capture.
func NewErrorSnapshot(err error) *CollectionSnapshot {
	return &CollectionSnapshot{Error: err.Error(), Documents: []DocumentEntry{}}
}

// IsForest reports whether the slot holds conductor trees.
func (c *CollectionSnapshot) IsForest() bool { return c.Conductors != nil }

// Failed reports whether the slot is an error marker.
func (c *CollectionSnapshot) Failed() bool { return c.Error != "" }

// DocumentCount counts every document in the slot, nested ones included.
func (c *CollectionSnapshot) DocumentCount() int {
	if c.IsForest() {
		total := 0
		for _, cs := range c.Conductors {
			total += cs.DocumentCount()
		}
		return total
	}
	return len(c.Documents)
}

type flatCollectionWire struct {
	CollectionPath string          `json:"collectionPath,omitempty"`
	Count          int             `json:"count"`
	Documents      []DocumentEntry `json:"documents"`
	Error          string          `json:"error,omitempty"`
}

type forestCollectionWire struct {
	CollectionPath string                        `json:"collectionPath"`
	Count          int                           `json:"count"`
	TotalDocuments int                           `json:"totalDocuments"`
	Documents      map[string]*ConductorSnapshot `json:"documents"`
}

// MarshalJSON writes flat slots with an array under "documents" and forest
// slots with an object keyed by conductor id.
func (c CollectionSnapshot) MarshalJSON() ([]byte, error) {
	if c.IsForest() && !c.Failed() {
		return json.Marshal(forestCollectionWire{
			CollectionPath: c.CollectionPath,
			Count:          len(c.Conductors),
			TotalDocuments: c.DocumentCount(),
			Documents:      c.Conductors,
		})
	}
	docs := c.Documents
	if docs == nil {
		docs = []DocumentEntry{}
	}
	count := c.Count
	if !c.Failed() {
		count = len(docs)
	}
	return json.Marshal(flatCollectionWire{
		CollectionPath: c.CollectionPath,
		Count:          count,
		Documents:      docs,
		Error:          c.Error,
	})
}

// UnmarshalJSON accepts both layouts written by MarshalJSON.
func (c *CollectionSnapshot) UnmarshalJSON(data []byte) error {
	var head struct {
		CollectionPath string          `json:"collectionPath"`
		Count          int             `json:"count"`
		Documents      json.RawMessage `json:"documents"`
		Error          string          `json:"error"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*c = CollectionSnapshot{CollectionPath: head.CollectionPath, Count: head.Count, Error: head.Error}

	raw := bytes.TrimSpace(head.Documents)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		c.Documents = []DocumentEntry{}
	case raw[0] == '{':
		conductors := map[string]*ConductorSnapshot{}
		if err := decodeNumbers(raw, &conductors); err != nil {
			return fmt.Errorf("decode conductor forest: %w", err)
		}
		c.Conductors = conductors
	case raw[0] == '[':
		var docs []DocumentEntry
		if err := decodeNumbers(raw, &docs); err != nil {
			return fmt.Errorf("decode documents: %w", err)
		}
		if docs == nil {
			docs = []DocumentEntry{}
		}
		c.Documents = docs
	default:
		return fmt.Errorf("unexpected documents value %q", string(raw[:1]))
	}
	return nil
}

// decodeNumbers unmarshals raw keeping numbers as json.Number, so document
// integers are not narrowed to float64 before DecodeDocument sees them.
func decodeNumbers(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// CloneDocument deep-copies nested maps and slices of data.
func CloneDocument(data DocumentData) DocumentData {
	if data == nil {
		return nil
	}
	return cloneValue(data).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
