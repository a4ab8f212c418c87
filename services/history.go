package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/store"
	"docqa-platform/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// HistoryService reads back recorded question/answer exchanges and exports
// them as a spreadsheet for offline review.
type HistoryService struct {
	history store.HistoryStore
}

func NewHistoryService(history store.HistoryStore) *HistoryService {
	return &HistoryService{history: history}
}

// List returns recent exchanges, newest first, optionally scoped to one
// document.
func (s *HistoryService) List(ctx context.Context, documentID string, limit int) ([]models.QAExchange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	exchanges, err := s.history.ListExchanges(ctx, documentID, limit)
	if err != nil {
		return nil, WrapInternal("failed to list exchanges", err)
	}
	return exchanges, nil
}

// ExportXLSX renders the exchanges into an Excel workbook and returns the
// file contents.
func (s *HistoryService) ExportXLSX(ctx context.Context, documentID string, limit int) ([]byte, error) {
	exchanges, err := s.List(ctx, documentID, limit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close workbook", "error", err)
		}
	}()

	sheetName := "QA History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, WrapInternal("failed to create sheet", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Document ID", "Question", "Answer",
		"Retrieved", "Cited Pages", "Latency (ms)", "Asked At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, ex := range exchanges {
		row := rowIdx + 2 // Start from row 2 (after headers)

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), ex.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), ex.DocumentID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), ex.Query)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), ex.Answer)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), ex.RetrievedCount)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), citedPages(ex.Citations))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), ex.LatencyMS)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), ex.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	for i := range headers {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 15)
	}

	// Summary sheet
	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, WrapInternal("failed to create summary sheet", err)
	}

	var totalRetrieved, grounded int
	var totalLatency int64
	docSet := make(map[string]bool)
	for _, ex := range exchanges {
		totalRetrieved += ex.RetrievedCount
		totalLatency += ex.LatencyMS
		if len(ex.Citations) > 0 {
			grounded++
		}
		if ex.DocumentID != "" {
			docSet[ex.DocumentID] = true
		}
	}
	avgLatency := 0.0
	if len(exchanges) > 0 {
		avgLatency = float64(totalLatency) / float64(len(exchanges))
	}
	scope := "all documents"
	if documentID != "" {
		scope = documentID
	}

	summaryData := [][]interface{}{
		{"Export Information", ""},
		{"Export Date", time.Now().Format("2006-01-02 15:04:05")},
		{"Document", scope},
		{"Total Exchanges", len(exchanges)},
		{"", ""},
		{"Summary Statistics", ""},
		{"Grounded Answers", grounded},
		{"Total Chunks Retrieved", totalRetrieved},
		{"Distinct Documents", len(docSet)},
		{"Average Latency (ms)", fmt.Sprintf("%.2f", avgLatency)},
	}
	for i, row := range summaryData {
		for j, cell := range row {
			f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}
	f.SetColWidth(summarySheet, "A", "A", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, WrapInternal("failed to render workbook", err)
	}
	return buf.Bytes(), nil
}

// citedPages flattens a citation list to the distinct pages it references.
func citedPages(citations []models.Citation) string {
	seen := make(map[int]bool, len(citations))
	var pages []string
	for _, c := range citations {
		if seen[c.Page] {
			continue
		}
		seen[c.Page] = true
		pages = append(pages, strconv.Itoa(c.Page))
	}
	return strings.Join(pages, ", ")
}
