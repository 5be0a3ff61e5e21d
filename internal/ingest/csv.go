// Package ingest reads tabular documents, chunks and embeds them, and
// dispatches the result to a vector backend as a background job.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/kensaku/internal/models"
)

// ColumnMapping names the CSV columns holding each document field.
type ColumnMapping struct {
	DocID    string `json:"doc_id_col"`
	Title    string `json:"title_col"`
	Category string `json:"category_col"`
	Text     string `json:"text_col"`
}

// withDefaults fills unset column names with the conventional ones.
func (m ColumnMapping) withDefaults() ColumnMapping {
	if m.DocID == "" {
		m.DocID = "id"
	}
	if m.Title == "" {
		m.Title = "title"
	}
	if m.Category == "" {
		m.Category = "category"
	}
	if m.Text == "" {
		m.Text = "text"
	}
	return m
}

// ReadCSV parses the file at path into documents using the column mapping.
// Rows with an empty text cell are skipped; a missing doc id gets a fresh
// uuid. The text column must exist in the header; the others are optional.
func ReadCSV(path string, mapping ColumnMapping) ([]*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()
	return readCSV(f, mapping)
}

// ValidateCSV checks that the file opens, parses, and has the text column.
// Used by the ingest endpoint to reject bad requests before scheduling.
func ValidateCSV(path string, mapping ColumnMapping) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()
	mapping = mapping.withDefaults()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	if columnIndex(header, mapping.Text) < 0 {
		return fmt.Errorf("csv has no %q column", mapping.Text)
	}
	return nil
}

func readCSV(f io.Reader, mapping ColumnMapping) ([]*models.Document, error) {
	mapping = mapping.withDefaults()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idCol := columnIndex(header, mapping.DocID)
	titleCol := columnIndex(header, mapping.Title)
	categoryCol := columnIndex(header, mapping.Category)
	textCol := columnIndex(header, mapping.Text)
	if textCol < 0 {
		return nil, fmt.Errorf("csv has no %q column", mapping.Text)
	}

	var docs []*models.Document
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		text := strings.TrimSpace(cell(row, textCol))
		if text == "" || strings.EqualFold(text, "nan") {
			continue
		}
		docID := strings.TrimSpace(cell(row, idCol))
		if docID == "" {
			docID = uuid.New().String()
		}
		docs = append(docs, &models.Document{
			DocID:    docID,
			Title:    cell(row, titleCol),
			Category: cell(row, categoryCol),
			Text:     text,
		})
	}
	return docs, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
