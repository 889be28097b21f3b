package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"posledger/internal/domain"
)

const sheetName = "Sales"

func WriteCSV(w io.Writer, g domain.Granularity, buckets []domain.SalesBucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{g.Label(), "total_sales", "num_sales"}); err != nil {
		return err
	}
	for _, bucket := range buckets {
		record := []string{bucket.Period, bucket.TotalSales.String(), strconv.FormatInt(bucket.NumSales, 10)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, g domain.Granularity, buckets []domain.SalesBucket) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headers := []string{g.Label(), "total_sales", "num_sales"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}

	// Built-in format 2 is "0.00".
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	for i, bucket := range buckets {
		row := i + 2
		cells := make([]string, 3)
		for col := range cells {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("cell for row %d: %w", row, err)
			}
			cells[col] = cell
		}
		if err := f.SetCellValue(sheetName, cells[0], bucket.Period); err != nil {
			return err
		}
		// The decimal text goes into the sheet as-is, so totals never pass through float64.
		if err := f.SetCellDefault(sheetName, cells[1], bucket.TotalSales.String()); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cells[1], cells[1], moneyStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cells[2], bucket.NumSales); err != nil {
			return err
		}
	}

	return f.Write(w)
}
