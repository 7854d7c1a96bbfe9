package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"solaralert/internal/models"
)

const alertSheet = "Alerts"

var alertHeaders = []string{"ID", "Sent At", "Type", "Level", "Message"}

func alertRow(a models.Alert) []string {
	return []string{
		strconv.FormatUint(uint64(a.ID), 10),
		a.SentAt.UTC().Format(time.RFC3339),
		string(a.Type),
		string(a.Level),
		a.Message,
	}
}

// WriteAlertsCSV writes the ledger as CSV with a header row.
func WriteAlertsCSV(w io.Writer, alerts []models.Alert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(alertHeaders); err != nil {
		return err
	}
	for _, a := range alerts {
		if err := cw.Write(alertRow(a)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAlertsXLSX writes the ledger as a workbook with an Alerts sheet and a
// Summary sheet counting alerts per type and level.
func WriteAlertsXLSX(w io.Writer, alerts []models.Alert, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(alertSheet); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, header := range alertHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(alertSheet, cell, header); err != nil {
			return err
		}
	}

	for rowIdx, a := range alerts {
		rowNum := rowIdx + 2
		f.SetCellValue(alertSheet, fmt.Sprintf("A%d", rowNum), a.ID)
		f.SetCellValue(alertSheet, fmt.Sprintf("B%d", rowNum), a.SentAt.UTC().Format("2006-01-02 15:04:05"))
		f.SetCellValue(alertSheet, fmt.Sprintf("C%d", rowNum), string(a.Type))
		f.SetCellValue(alertSheet, fmt.Sprintf("D%d", rowNum), string(a.Level))
		f.SetCellValue(alertSheet, fmt.Sprintf("E%d", rowNum), a.Message)
	}

	f.SetColWidth(alertSheet, "A", "A", 8)
	f.SetColWidth(alertSheet, "B", "D", 20)
	f.SetColWidth(alertSheet, "E", "E", 100)

	if len(alerts) > 0 {
		criticalRule := []excelize.ConditionalFormatOptions{
			{
				Type:     "cell",
				Criteria: "==",
				Value:    `"Critical"`,
				Format:   fillStyle(f, "#FFCCCC"),
			},
		}
		rng := fmt.Sprintf("D2:D%d", len(alerts)+1)
		if err := f.SetConditionalFormat(alertSheet, rng, criticalRule); err != nil {
			return err
		}
	}

	if err := writeSummarySheet(f, alerts, generatedAt); err != nil {
		return err
	}

	index, err := f.GetSheetIndex(alertSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	return f.Write(w)
}

func writeSummarySheet(f *excelize.File, alerts []models.Alert, generatedAt time.Time) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Report Generated")
	f.SetCellValue(sheet, "B1", generatedAt.UTC().Format("2006-01-02 15:04:05"))
	f.SetCellValue(sheet, "A2", "Total Alerts")
	f.SetCellValue(sheet, "B2", len(alerts))

	f.SetCellValue(sheet, "A4", "Type")
	f.SetCellValue(sheet, "B4", string(models.LevelWatch))
	f.SetCellValue(sheet, "C4", string(models.LevelWarning))
	f.SetCellValue(sheet, "D4", string(models.LevelCritical))

	counts := make(map[models.EventType]map[models.Level]int)
	for _, a := range alerts {
		if counts[a.Type] == nil {
			counts[a.Type] = make(map[models.Level]int)
		}
		counts[a.Type][a.Level]++
	}

	row := 5
	for _, t := range models.EventTypes {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), string(t))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), counts[t][models.LevelWatch])
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), counts[t][models.LevelWarning])
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), counts[t][models.LevelCritical])
		row++
	}
	return nil
}

func fillStyle(f *excelize.File, color string) *int {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil
	}
	return &style
}
