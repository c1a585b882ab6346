// Package export renders price history as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"steam-price-tracker/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Price History"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Recorded At (UTC)", "Price", "Market Hash Name", "App ID"}

// WriteHistory writes an XLSX workbook with one row per sample, in the order given.
func WriteHistory(w io.Writer, item *models.Item, samples []models.PriceSample) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(SheetName, "A1", "D1", bold)
	}
	priceFmt := "0.00"
	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &priceFmt})
	if err != nil {
		return fmt.Errorf("price style: %w", err)
	}

	for i, s := range samples {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			s.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
			s.Price,
			item.MarketHashName,
			item.SteamAppID,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		priceCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellStyle(SheetName, priceCell, priceCell, priceStyle)
	}
	_ = f.SetColWidth(SheetName, "A", "A", 22)
	_ = f.SetColWidth(SheetName, "C", "C", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename returns a download name for an item's history workbook.
func Filename(item *models.Item) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(item.MarketHashName, "_"), "_")
	if name == "" {
		name = fmt.Sprintf("item-%d", item.ID)
	}
	return name + "-history.xlsx"
}
