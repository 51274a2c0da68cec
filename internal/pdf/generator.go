package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// PDFGenerator renders adherence reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// MedicationSummary is the adherence of one medication over the report range
type MedicationSummary struct {
	Name   string
	Dosage string
	Stats  *model.AdherenceStats
}

// ReportData contains all data needed for report generation
type ReportData struct {
	PatientName string
	From        time.Time
	To          time.Time
	GeneratedAt time.Time
	Overall     *model.AdherenceStats
	Medications []MedicationSummary
	Daily       []model.DailyScore
	Events      []model.MedicationEvent
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating adherence report",
		zap.String("from", data.From.Format(dateLayout)),
		zap.String("to", data.To.Format(dateLayout)),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	g.addTitle(pdf, data)
	g.addSummary(pdf, data.Overall)
	g.addMedications(pdf, data.Medications)
	g.addDailyScores(pdf, data.Daily)
	g.addEventLog(pdf, data.Events)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("adherence report generated", zap.Int("size_bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, data *ReportData) {
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, "Medication Adherence Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Patient: %s", data.PatientName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s to %s", data.From.Format(dateLayout), data.To.Format(dateLayout)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addSummary(pdf *gofpdf.Fpdf, stats *model.AdherenceStats) {
	g.addSectionHeader(pdf, "Summary")

	if stats == nil || stats.TotalScheduled == 0 {
		pdf.CellFormat(0, 8, "No doses recorded during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	band := model.BandFor(stats.AdherenceScore, stats.TotalScheduled)
	pdf.CellFormat(0, 6, fmt.Sprintf("Adherence: %.1f%% (%s)", stats.AdherenceScore, band), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("On time: %.1f%% of taken doses", stats.OnTimeScore), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Doses: %d logged, %d taken, %d skipped, %d missed",
		stats.TotalScheduled, stats.TotalTaken, stats.TotalSkipped, stats.TotalMissed), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Streak: %d days current, %d days longest",
		stats.CurrentStreak, stats.LongestStreak), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func (g *PDFGenerator) addMedications(pdf *gofpdf.Fpdf, medications []MedicationSummary) {
	g.addSectionHeader(pdf, "Medications")

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, "No medications recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, med := range medications {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s %s", med.Name, med.Dosage), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		if med.Stats == nil || med.Stats.TotalScheduled == 0 {
			pdf.CellFormat(0, 5, "  No doses logged", "", 1, "L", false, 0, "")
		} else {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Adherence: %.1f%%, on time: %.1f%%, taken %d of %d",
				med.Stats.AdherenceScore, med.Stats.OnTimeScore, med.Stats.TotalTaken, med.Stats.TotalScheduled), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addDailyScores(pdf *gofpdf.Fpdf, days []model.DailyScore) {
	g.addSectionHeader(pdf, "Daily Adherence")

	if len(days) == 0 {
		pdf.CellFormat(0, 8, "No daily data available.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Date", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Taken", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "Score", "B", 0, "R", false, 0, "")
	pdf.CellFormat(0, 6, "Band", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)

	for _, day := range days {
		pdf.CellFormat(40, 5, day.Date.Format(dateLayout), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 5, fmt.Sprintf("%d/%d", day.TotalTaken, day.TotalScheduled), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 5, fmt.Sprintf("%.0f%%", day.Score), "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 5, string(day.Band), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addEventLog(pdf *gofpdf.Fpdf, events []model.MedicationEvent) {
	g.addSectionHeader(pdf, "Dose Log")

	if len(events) == 0 {
		pdf.CellFormat(0, 8, "No doses logged during this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %s", ev.ScheduledTime.Format("2006-01-02 15:04"), ev.Status)
		if ev.Status == model.EventStatusTaken && ev.MinutesLate != nil && *ev.MinutesLate > 0 {
			line += fmt.Sprintf(" (%d min late)", *ev.MinutesLate)
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}
