// Package fetcher retrieves recognizer output files for ingestion. Sources
// yield raw JSON documents; decoding into the model happens here so every
// source behaves identically.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
)

// Source lists and opens recognizer output documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Decode parses one recognizer output document. The file ID defaults to the
// file name, without extension, when the payload does not carry one.
func Decode(r io.Reader, name string) (*model.RecognizedFile, error) {
	var file model.RecognizedFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s", name)
	}

	if file.ID == "" {
		base := filepath.Base(name)
		file.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if file.Name == "" {
		file.Name = filepath.Base(name)
	}
	if len(file.Pages) == 0 {
		return nil, eris.Errorf("fetcher: %s has no pages", name)
	}
	return &file, nil
}

// Fetch opens and decodes one document from a source.
func Fetch(ctx context.Context, src Source, name string) (*model.RecognizedFile, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Decode(rc, name)
}
