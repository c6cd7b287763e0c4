package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var csvHeader = []string{"week", "date", "weekday", "slot", "option", "template", "location", "servings", "completed", "notes"}

// RenderCSV writes one row per entry, in grid order.
func RenderCSV(plan *WeekPlan) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, d := range plan.Days {
		for _, s := range d.Slots {
			for _, e := range s.Entries {
				notes := ""
				if e.Notes != nil {
					notes = *e.Notes
				}
				row := []string{
					plan.Week,
					d.Date,
					d.Weekday,
					string(s.Slot),
					e.OptionName,
					e.TemplateName,
					string(e.Location),
					strconv.FormatFloat(e.Servings, 'f', -1, 64),
					strconv.FormatBool(e.Completed),
					notes,
				}
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPDF draws the grid on a landscape A4 page followed by the usage
// tables. Only the core Helvetica font is used, so text is cp1252.
func RenderPDF(plan *WeekPlan) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Weekly meal plan "+plan.Week, false)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Weekly meal plan "+plan.Week))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("%s to %s, %d entries", plan.Start, plan.End, plan.EntryCount()))
	pdf.Ln(12)

	drawGrid(pdf, tr, plan)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Weekly limits")
	pdf.Ln(8)
	drawUsage(pdf, tr, "Option", optionRows(plan))

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Tag suggestions")
	pdf.Ln(8)
	drawUsage(pdf, tr, "Tag", tagRows(plan))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	slotColWidth = 33.0
	dayColWidth  = 34.0
	rowHeight    = 6.0
)

func drawGrid(pdf *gofpdf.Fpdf, tr func(string) string, plan *WeekPlan) {
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(slotColWidth, rowHeight, "", "1", 0, "C", false, 0, "")
	for i, d := range plan.Days {
		ln := 0
		if i == len(plan.Days)-1 {
			ln = 1
		}
		pdf.CellFormat(dayColWidth, rowHeight, d.Weekday[:3]+" "+d.Date[5:], "1", ln, "C", false, 0, "")
	}

	if len(plan.Days) == 0 {
		return
	}
	left, _, _, _ := pdf.GetMargins()
	for si := range plan.Days[0].Slots {
		// A row is as tall as its busiest cell.
		lines := 1
		for _, d := range plan.Days {
			if n := len(d.Slots[si].Entries); n > lines {
				lines = n
			}
		}
		height := float64(lines) * rowHeight

		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(slotColWidth, height, slotLabel(string(plan.Days[0].Slots[si].Slot)), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		for i, d := range plan.Days {
			x, y := pdf.GetXY()
			pdf.Rect(x, y, dayColWidth, height, "D")
			for j, e := range d.Slots[si].Entries {
				pdf.SetXY(x, y+float64(j)*rowHeight)
				pdf.CellFormat(dayColWidth, rowHeight, fit(pdf, tr(entryLabel(e)), dayColWidth-2), "", 0, "L", false, 0, "")
			}
			pdf.SetXY(x+dayColWidth, y)
			if i == len(plan.Days)-1 {
				pdf.SetXY(left, y+height)
			}
		}
	}
}

type usageRow struct {
	name  string
	count int
	cap   *int
}

func optionRows(plan *WeekPlan) []usageRow {
	rows := make([]usageRow, len(plan.Options))
	for i, o := range plan.Options {
		rows[i] = usageRow{name: o.OptionName, count: o.UsageCount, cap: o.WeeklyLimit}
	}
	return rows
}

func tagRows(plan *WeekPlan) []usageRow {
	rows := make([]usageRow, len(plan.Tags))
	for i, t := range plan.Tags {
		rows[i] = usageRow{name: t.TagName, count: t.UsageCount, cap: t.WeeklySuggestion}
	}
	return rows
}

func drawUsage(pdf *gofpdf.Fpdf, tr func(string) string, label string, rows []usageRow) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(80, rowHeight, label, "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, rowHeight, "Used", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, rowHeight, "Cap", "1", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	if len(rows) == 0 {
		pdf.CellFormat(130, rowHeight, "none", "1", 1, "L", false, 0, "")
		return
	}
	for _, r := range rows {
		capText := "-"
		if r.cap != nil {
			capText = strconv.Itoa(*r.cap)
		}
		pdf.CellFormat(80, rowHeight, fit(pdf, tr(r.name), 78), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, rowHeight, strconv.Itoa(r.count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, rowHeight, capText, "1", 1, "C", false, 0, "")
	}
}

func entryLabel(e PlannedEntry) string {
	label := e.OptionName
	if e.Servings != 1 {
		label += " x" + strconv.FormatFloat(e.Servings, 'f', -1, 64)
	}
	if e.Completed {
		label = "[x] " + label
	}
	return label
}

func slotLabel(slot string) string {
	s := strings.ReplaceAll(slot, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// fit truncates s with "..." until it is at most width wide.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
