// Package report exports stored results as an xlsx workbook
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shehryarbajwa/regpool/internal/store"
)

const (
	prodSheet = "prod"
	saleSheet = "sale"
)

var (
	prodHeader = []any{"id", "idx", "task_type", "phone", "password", "nick", "dob", "age", "region", "status", "error", "created_at"}
	saleHeader = []any{"id", "idx", "task_type", "phone", "password", "nick", "dob", "age", "region", "assign_status", "assign_user", "assign_time", "created_at"}
)

// DefaultName returns a timestamped report file name
func DefaultName(now time.Time) string {
	return fmt.Sprintf("report_%s.xlsx", now.Format("20060102_150405"))
}

// Write saves prod and sale rows to path as two sheets
func Write(path string, prod []store.Row, sale []store.SaleRow) error {
	if filepath.Ext(path) != ".xlsx" {
		path += ".xlsx"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", prodSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(saleSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	prodRows := make([][]any, 0, len(prod))
	for _, r := range prod {
		prodRows = append(prodRows, []any{r.ID, r.Idx, r.TaskType, r.Phone, r.Password, r.Nickname, r.DOB, r.Age, r.Region, r.Status, r.Error, r.CreatedAt})
	}
	if err := writeSheet(f, prodSheet, prodHeader, prodRows); err != nil {
		return err
	}

	saleRows := make([][]any, 0, len(sale))
	for _, r := range sale {
		saleRows = append(saleRows, []any{r.ID, r.Idx, r.TaskType, r.Phone, r.Password, r.Nickname, r.DOB, r.Age, r.Region, r.AssignStatus, r.AssignUser, r.AssignTime, r.CreatedAt})
	}
	if err := writeSheet(f, saleSheet, saleHeader, saleRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
