package receipts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	borrowed := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	raw, err := describe(Details{
		UserName:    "Ada Lovelace",
		PhoneNumber: "0123456789",
		Email:       "ada@example.com",
		BookTitle:   "Middlemarch",
		BorrowDate:  borrowed,
		DueDate:     borrowed.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	var desc description
	require.NoError(t, json.Unmarshal(raw, &desc))
	assert.Equal(t, "UpperLeft", desc.Origin)
	require.Contains(t, desc.Pages, "1")

	values := []string{}
	for _, txt := range desc.Pages["1"].Content.Text {
		values = append(values, txt.Value)
	}
	assert.Equal(t, []string{
		"Serenity Library Borrow Receipt",
		"Name: Ada Lovelace",
		"Phone: 0123456789",
		"Email: ada@example.com",
		"Book: Middlemarch",
		"Borrowed: 02 Mar 2026",
		"Due: 12 Mar 2026",
	}, values)
}

func TestPDFGenerator_Generate(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "receipts")
	borrowed := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	path, err := NewPDFGenerator(dir).Generate(context.Background(), Details{
		UserName:    "Ada Lovelace",
		PhoneNumber: "0123456789",
		Email:       "ada@example.com",
		BookTitle:   "Middlemarch",
		BorrowDate:  borrowed,
		DueDate:     borrowed.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))

	pages, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}
