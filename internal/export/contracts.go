package export

import (
	"fmt"
	"io"
	"time"

	"leasemarket/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ContractsSheet = "Contracts"
	ScheduleSheet  = "Schedule"
)

// WriteContracts renders the contracts of a resource as an xlsx workbook:
// one row per contract, plus a day-by-hour schedule for [dayFrom, dayTo].
func WriteContracts(w io.Writer, resource models.Resource, contracts []models.Contract, dayFrom, dayTo string) error {
	from, err := time.Parse(models.DayLayout, dayFrom)
	if err != nil {
		return fmt.Errorf("parse day %q: %w", dayFrom, err)
	}
	to, err := time.Parse(models.DayLayout, dayTo)
	if err != nil {
		return fmt.Errorf("parse day %q: %w", dayTo, err)
	}
	if to.Before(from) {
		return fmt.Errorf("day range %s - %s is inverted", dayFrom, dayTo)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ContractsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(ScheduleSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	header, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	if err := writeContractRows(f, header, resource, contracts, dayFrom, dayTo); err != nil {
		return err
	}
	writeSchedule(f, header, contracts, from, to)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeContractRows(f *excelize.File, header int, resource models.Resource, contracts []models.Contract, dayFrom, dayTo string) error {
	sheet := ContractsSheet
	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("%s (#%d): %s - %s", resource.Name, resource.ID, dayFrom, dayTo))
	_ = f.MergeCell(sheet, "A1", "H1")
	title, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", title)

	columns := []string{"ID", "Requester", "VIP", "From", "To", "Hours", "Price", "Created"}
	if err := f.SetSheetRow(sheet, "A2", &columns); err != nil {
		return err
	}
	_ = f.SetCellStyle(sheet, "A2", "H2", header)

	for i, c := range contracts {
		if len(c.Hours) == 0 {
			continue
		}
		row := []interface{}{
			c.ID,
			c.Requester.Name,
			yesNo(c.Requester.IsVIP),
			c.Hours[0].String(),
			c.Hours[len(c.Hours)-1].String(),
			c.HourCount(),
			c.Price,
			c.CreatedAt.Format(time.DateTime),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", "B", 25)
	_ = f.SetColWidth(sheet, "D", "E", 16)
	_ = f.SetColWidth(sheet, "H", "H", 20)
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// writeSchedule fills a day x hour grid with the id of the contract holding each hour.
// When a VIP contract overrides a regular one the later contract wins the cell.
func writeSchedule(f *excelize.File, header int, contracts []models.Contract, from, to time.Time) {
	sheet := ScheduleSheet
	_ = f.SetCellValue(sheet, "A1", "Day")
	for hour := 0; hour < 24; hour++ {
		cell, _ := excelize.CoordinatesToCellName(hour+2, 1)
		_ = f.SetCellValue(sheet, cell, fmt.Sprintf("%02d", hour))
	}
	_ = f.SetCellStyle(sheet, "A1", "Y1", header)

	rows := make(map[string]int)
	row := 2
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(models.DayLayout)
		rows[key] = row
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheet, cell, key)
		row++
	}

	busy, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for _, c := range contracts {
		for _, h := range c.Hours {
			r, ok := rows[h.Day()]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(h.Time().Hour()+2, r)
			_ = f.SetCellValue(sheet, cell, c.ID)
			_ = f.SetCellStyle(sheet, cell, cell, busy)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
}
