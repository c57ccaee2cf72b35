package dataloader

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrMalformedJSON = errors.New("malformed JSON")
	ErrNotAList      = errors.New("expected list of records")
)

// ReadJSON loads the whole file and decodes it into an object
// (map[string]any) or a list ([]any). Numbers stay json.Number so they are
// written back exactly as read.
func ReadJSON(path string, log logrus.FieldLogger) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Errorf("File not found: %s", path)
			return nil, errors.Wrap(ErrFileNotFound, path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	v, err := decode(raw)
	if err != nil {
		log.Errorf("JSON parsing error in file %s: %s", path, err)
		return nil, errors.Wrapf(ErrMalformedJSON, "%s: %s", path, err)
	}
	return v, nil
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Errorf("extra data after offset %d", dec.InputOffset())
	}
	return v, nil
}
