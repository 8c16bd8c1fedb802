package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// readJSONL returns each non-empty, valid line of path. Malformed lines are
// skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		records = append(records, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL writes records one per line, atomically: temp file, fsync,
// rename.
func writeJSONL(path string, records []json.RawMessage) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err = w.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
		if err = w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Export writes every document of collection to path, one JSON document
// per line, ordered by _id.
func (s *DocSession) Export(ctx context.Context, collection, path string) (*types.Result, error) {
	sel := &docdb.BaseSelector{}
	sel.Selector = collection
	sel.Order = docdb.IDField
	found, err := s.Find(ctx, sel)
	if err != nil {
		return nil, err
	}

	docs := found.Data()
	records := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		if records[i], err = d.ToJSON(); err != nil {
			return nil, types.Wrap(types.ErrSessionFinding, err, "encoding "+d.ID())
		}
	}
	if err := writeJSONL(path, records); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "exporting "+collection)
	}
	s.log.Info("collection exported", "collection", collection, "path", path, "documents", len(docs))
	return types.NewResponse[any](len(docs)), nil
}

// Import inserts every document stored in the JSONL file at path.
// Documents without _id receive a fresh one.
func (s *DocSession) Import(ctx context.Context, collection, path string) (*types.Result, error) {
	records, err := readJSONL(path)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "importing "+collection)
	}
	docs := make([]*docdb.Document, 0, len(records))
	for _, rec := range records {
		d, err := docdb.FromJSON(rec)
		if err != nil {
			continue
		}
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return types.NewResponse[any](0), nil
	}
	if _, err := s.InsertMany(ctx, collection, docs); err != nil {
		return nil, err
	}
	return types.NewResponse[any](len(docs)), nil
}
