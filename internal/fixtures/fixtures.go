// Package fixtures parses the reference-data files loaded by cmd/loaddata.
//
// Ingredients come as CSV (one "name,unit" row per ingredient, no header) or
// JSON ([{"name": ..., "measurement_unit": ...}]). Tags come as YAML:
//
//	- name: Breakfast
//	  slug: breakfast
package fixtures

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/foodgram/internal/model"
)

// Format of an ingredients file.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// FormatOf guesses the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	}
	return "", fmt.Errorf("cannot tell the format of %q: use a .csv or .json file or pass --format", path)
}

// ParseIngredients reads ingredients in the given format.
func ParseIngredients(r io.Reader, f Format) ([]model.Ingredient, error) {
	switch f {
	case CSV:
		return parseIngredientsCSV(r)
	case JSON:
		var items []model.Ingredient
		if err := json.NewDecoder(r).Decode(&items); err != nil {
			return nil, fmt.Errorf("decoding ingredients JSON: %w", err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("unknown ingredients format %q", f)
}

func parseIngredientsCSV(r io.Reader) ([]model.Ingredient, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var items []model.Ingredient
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading ingredients CSV: %w", err)
		}
		items = append(items, model.Ingredient{
			Name:            strings.TrimPrefix(row[0], "\ufeff"),
			MeasurementUnit: row[1],
		})
	}
}

type tagFixture struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// ParseTags reads a YAML list of tags.
func ParseTags(r io.Reader) ([]model.Tag, error) {
	var raw []tagFixture
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding tags YAML: %w", err)
	}
	tags := make([]model.Tag, len(raw))
	for i, t := range raw {
		tags[i] = model.Tag{Name: t.Name, Slug: t.Slug}
	}
	return tags, nil
}
