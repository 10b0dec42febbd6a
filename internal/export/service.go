package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
	"paperalchemist/internal/repository"
)

// Service renders the document catalog as an XLSX workbook.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

const sheetName = "Papers"

var headers = []string{
	"Doc ID", "Filename", "Status", "Title", "Authors", "Year",
	"Journal", "DOI", "Language", "Keywords", "OCR Performed",
	"Chunks", "Extraction", "Uploaded At", "Processed At",
}

// Catalog builds a workbook of the most recent documents and returns the
// serialized bytes plus a timestamped filename.
func (s *Service) Catalog(ctx context.Context, limit int) ([]byte, string, error) {
	docs, err := s.docs.ListRecent(ctx, limit, 0)
	if err != nil {
		return nil, "", common.WrapError(err, "list documents for export")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.workbook_close_failed", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, "", common.WrapError(err, "rename sheet")
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", common.WrapError(err, "header cell name")
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, "", common.WrapError(err, "write header")
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", endCell, headerStyle)
	}

	for rowIdx, doc := range docs {
		row := docRow(doc)
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, "", common.WrapError(err, "data cell name")
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, "", common.WrapError(err, "write cell")
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", common.WrapError(err, "serialize workbook")
	}

	filename := fmt.Sprintf("papers_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	s.logger.Info("export.catalog_built", "rows", len(docs), "filename", filename)
	return buf.Bytes(), filename, nil
}

func docRow(doc entity.Document) []any {
	return []any{
		doc.DocID.String(),
		doc.Filename,
		string(doc.Status),
		strOrEmpty(doc.Metadata.Title),
		strings.Join(doc.Metadata.Authors, "; "),
		intOrEmpty(doc.Metadata.PublicationYear),
		strOrEmpty(doc.Metadata.Journal),
		strOrEmpty(doc.Metadata.DOI),
		strOrEmpty(doc.Metadata.Language),
		strings.Join(doc.Metadata.Keywords, "; "),
		doc.OCRPerformed,
		doc.ChunkCount,
		string(doc.ExtractionMethod),
		doc.UploadedAt.Format(time.RFC3339),
		timeOrEmpty(doc.ProcessedAt),
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(i *int) any {
	if i == nil {
		return ""
	}
	return *i
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
