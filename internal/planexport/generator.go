package planexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/fdg312/nutri-plans/internal/meals"
	"github.com/fdg312/nutri-plans/internal/plans"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// csvHeader is one row per meal.
var csvHeader = []string{
	"day_position", "day_of_week", "day_active", "meal_position", "type", "time",
	"selected_recipe_id", "kcal", "protein_g", "carbs_g", "fat_g", "is_completed", "completed_at", "notes",
}

// Render produces the plan sheet in the requested format.
func Render(plan plans.PlanDTO, format string) ([]byte, error) {
	switch format {
	case FormatPDF:
		return renderPDF(plan)
	case FormatCSV:
		return renderCSV(plan)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func renderCSV(plan plans.PlanDTO) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, day := range plan.Days {
		for _, m := range day.Meals {
			row := []string{
				strconv.Itoa(day.Position),
				dayName(day.DayOfWeek),
				strconv.FormatBool(day.IsActive),
				strconv.Itoa(m.Position),
				m.Type,
				m.Time,
				stringOrEmpty(m.SelectedRecipeID),
				intOrEmpty(m.Kcal),
				intOrEmpty(m.ProteinG),
				intOrEmpty(m.CarbsG),
				intOrEmpty(m.FatG),
				strconv.FormatBool(m.IsCompleted),
				"",
				m.Notes,
			}
			if m.CompletedAt != nil {
				row[12] = m.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDF(plan plans.PlanDTO) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(plan.Name))
	pdf.Ln(9)

	pdf.SetFont("Arial", "", 10)
	period := plan.StartDate.Format("2006-01-02")
	if plan.EndDate != nil {
		period += " - " + plan.EndDate.Format("2006-01-02")
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s    Period: %s", plan.Status, period))
	pdf.Ln(6)
	if plan.Description != "" {
		pdf.MultiCell(0, 5, tr(plan.Description), "", "L", false)
	}
	if len(plan.Goals) > 0 {
		pdf.MultiCell(0, 5, tr("Goals: "+strings.Join(plan.Goals, ", ")), "", "L", false)
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 7, "Targets vs. planned")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	t := plan.Totals
	pdf.Cell(0, 5, fmt.Sprintf("Kcal/day target: %s    Protein: %s g    Carbs: %s g    Fat: %s g",
		intOrDash(plan.KcalPerDay), intOrDash(plan.ProteinG), intOrDash(plan.CarbsG), intOrDash(plan.FatG)))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Planned total: %d kcal    Protein: %d g    Carbs: %d g    Fat: %d g", t.Kcal, t.ProteinG, t.CarbsG, t.FatG))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Meals: %d    Fulfilled: %d    Completed: %d", t.Meals, t.FulfilledMeals, t.CompletedMeals))
	pdf.Ln(10)

	for _, day := range plan.Days {
		drawDay(pdf, tr, day)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func drawDay(pdf *gofpdf.Fpdf, tr func(string) string, day plans.DayDTO) {
	title := dayName(day.DayOfWeek)
	if !day.IsActive {
		title += " (inactive)"
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, title)
	pdf.Ln(7)
	if day.Notes != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(day.Notes), "", "L", false)
	}

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(15, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Recipe", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, "Kcal", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, "Protein", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, "Carbs", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, "Fat", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Done", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 8)
	for _, m := range day.Meals {
		drawMealRow(pdf, tr, m)
	}
	pdf.Ln(4)
}

func drawMealRow(pdf *gofpdf.Fpdf, tr func(string) string, m meals.MealDTO) {
	recipe := "-"
	if m.SelectedRecipeID != nil {
		recipe = *m.SelectedRecipeID
	}
	done := ""
	if m.IsCompleted {
		done = "yes"
	}

	pdf.CellFormat(15, 6, m.Time, "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, m.Type, "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, tr(recipe), "1", 0, "L", false, 0, "")
	pdf.CellFormat(16, 6, intOrDash(m.Kcal), "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, intOrDash(m.ProteinG), "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, intOrDash(m.CarbsG), "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, intOrDash(m.FatG), "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, done, "1", 1, "C", false, 0, "")
}

func dayName(d int) string {
	if d < 0 || d >= len(dayNames) {
		return strconv.Itoa(d)
	}
	return dayNames[d]
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
