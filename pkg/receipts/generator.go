// Package receipts renders borrow receipts as PDF files.
package receipts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const dateLayout = "02 Jan 2006"

type Details struct {
	UserName    string
	PhoneNumber string
	Email       string
	BookTitle   string
	BorrowDate  time.Time
	DueDate     time.Time
}

type Generator interface {
	// Generate writes a receipt and returns its path. The caller owns the
	// file and removes it when done.
	Generate(ctx context.Context, d Details) (string, error)
}

// PDFGenerator renders receipts with pdfcpu into dir.
type PDFGenerator struct {
	dir string
}

func NewPDFGenerator(dir string) *PDFGenerator {
	return &PDFGenerator{dir}
}

func (g *PDFGenerator) Generate(ctx context.Context, d Details) (string, error) {
	desc, err := describe(d)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	path := filepath.Join(g.dir, fmt.Sprintf("receipt-%s.pdf", uuid.NewString()))

	out, err := os.Create(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer out.Close()

	if err := api.Create(nil, bytes.NewReader(desc), out, nil); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "render receipt")
	}

	logger.FromContext(ctx).Info("receipt generated", logger.Data{"path": path, "email": d.Email})
	return path, nil
}

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type text struct {
	Value string `json:"value"`
	Pos   [2]int `json:"pos"`
	Font  font   `json:"font"`
}

type content struct {
	Text []text `json:"text"`
}

type page struct {
	Content content `json:"content"`
}

type description struct {
	Paper  string          `json:"paper"`
	Origin string          `json:"origin"`
	Pages  map[string]page `json:"pages"`
}

// describe builds the pdfcpu JSON description of a one page receipt.
func describe(d Details) ([]byte, error) {
	heading := font{Name: "Helvetica-Bold", Size: 20}
	body := font{Name: "Helvetica", Size: 12}

	lines := []struct{ label, value string }{
		{"Name", d.UserName},
		{"Phone", d.PhoneNumber},
		{"Email", d.Email},
		{"Book", d.BookTitle},
		{"Borrowed", d.BorrowDate.Format(dateLayout)},
		{"Due", d.DueDate.Format(dateLayout)},
	}

	texts := []text{{Value: "Serenity Library Borrow Receipt", Pos: [2]int{50, 60}, Font: heading}}
	for i, l := range lines {
		texts = append(texts, text{
			Value: fmt.Sprintf("%s: %s", l.label, l.value),
			Pos:   [2]int{50, 110 + i*24},
			Font:  body,
		})
	}

	out, err := json.Marshal(description{
		Paper:  "A5P",
		Origin: "UpperLeft",
		Pages:  map[string]page{"1": {Content: content{Text: texts}}},
	})
	return out, errors.WithStack(err)
}
