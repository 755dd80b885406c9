// Package ledger is the external system of record: committed transactions
// are appended as rows of an Excel workbook tab.
package ledger

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook appends rows to one tab of an xlsx file
type Workbook struct {
	mu     sync.Mutex
	path   string
	tab    string
	logger *zap.Logger
}

// NewWorkbook creates a workbook sink. The file and tab are created on
// first write if missing.
func NewWorkbook(path, tab string, logger *zap.Logger) *Workbook {
	return &Workbook{
		path:   path,
		tab:    tab,
		logger: logger,
	}
}

func (w *Workbook) open() (*excelize.File, error) {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		// Rename the default sheet instead of adding one beside it, so a
		// fresh workbook holds exactly the configured tab.
		if def := f.GetSheetName(f.GetActiveSheetIndex()); def != w.tab {
			if err := f.SetSheetName(def, w.tab); err != nil {
				return nil, fmt.Errorf("failed to create tab %q: %w", w.tab, err)
			}
		}
		return f, nil
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

// AppendRow writes one row after the last populated row of the tab
func (w *Workbook) AppendRow(ctx context.Context, columns []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(w.tab)
	if err != nil {
		return fmt.Errorf("failed to read tab %q: %w", w.tab, err)
	}
	next := len(rows) + 1

	for i, value := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, next)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(w.tab, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("Ledger row appended",
		zap.String("tab", w.tab),
		zap.Int("row", next))
	return nil
}

// ListTabs enumerates the workbook's sheet names
func (w *Workbook) ListTabs(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetSheetList(), nil
}
