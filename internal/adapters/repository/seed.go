package repository

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/okian/audiomatch/internal/domain/model"
)

//go:embed seed/components.json
var defaultSeed []byte

// DecodeComponents reads a JSON array of components. Category aliases such
// as "headphones" or "combo" are resolved to their canonical names.
func DecodeComponents(r io.Reader) ([]model.Component, error) {
	var list []model.Component
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	for i := range list {
		c, err := model.ParseCategory(string(list[i].Category))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidComponent, list[i].ID, err)
		}
		list[i].Category = c
	}
	return list, nil
}

// DefaultSeed returns the catalog bundled with the binary.
func DefaultSeed() ([]model.Component, error) {
	return DecodeComponents(bytes.NewReader(defaultSeed))
}

// LoadFile decodes components from a JSON file.
func LoadFile(path string) ([]model.Component, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return DecodeComponents(f)
}

// Seed loads path into store, or the bundled catalog when path is empty.
func Seed(ctx context.Context, store Store, path string) (int, error) {
	var (
		list []model.Component
		err  error
	)
	if path == "" {
		list, err = DefaultSeed()
	} else {
		list, err = LoadFile(path)
	}
	if err != nil {
		return 0, err
	}
	return store.Upsert(ctx, list...)
}
