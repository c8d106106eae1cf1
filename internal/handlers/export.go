package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/models"
	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Repair Sheets"

var exportHeaders = []string{
	"Created", "RO Number", "Technician", "Customer First Name", "Customer Last Name",
	"Mileage In", "Mileage Out",
	"Tread LF", "Tread RF", "Tread LR", "Tread RR",
	"Brake LF", "Brake RF", "Brake LR", "Brake RR",
	"Pressure FL In", "Pressure FR In", "Pressure RL In", "Pressure RR In", "Pressure Front Out", "Pressure Rear Out",
	"Customer Concern", "Recommendations", "Shop Recommendations", "Diagnostic File",
}

// Export downloads the visible list as an Excel workbook.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	v := s.listFromQuery(r)
	if err := v.Load(r.Context()); err != nil {
		http.Error(w, "Failed to load repair sheets", http.StatusInternalServerError)
		return
	}

	buf, err := buildWorkbook(v.Visible())
	if err != nil {
		log.WithError(err).Error("Failed to build repair sheet export")
		http.Error(w, "Failed to build export", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("repair-sheets-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	buf.WriteTo(w)
}

// buildWorkbook lays out one row per sheet under a styled header row.
func buildWorkbook(sheets []models.RepairSheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("error naming sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err == nil {
		f.SetRowStyle(exportSheetName, 1, 1, headerStyle)
	}

	for i, s := range sheets {
		front, rear := s.BrakeUnitFor(models.AxleFront), s.BrakeUnitFor(models.AxleRear)
		row := []interface{}{
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.RONumber,
			s.TechnicianName,
			s.CustomerFirstName,
			s.CustomerLastName,
			s.MileageIn,
			s.MileageOut,
			s.TireTread.LF, s.TireTread.RF, s.TireTread.LR, s.TireTread.RR,
			front.Format(s.BrakePads.LF), front.Format(s.BrakePads.RF),
			rear.Format(s.BrakePads.LR), rear.Format(s.BrakePads.RR),
			s.TirePressure.FrontLeftIn, s.TirePressure.FrontRightIn,
			s.TirePressure.RearLeftIn, s.TirePressure.RearRightIn,
			s.TirePressure.FrontOut, s.TirePressure.RearOut,
			s.CustomerConcern,
			s.Recommendations,
			s.ShopRecommendations,
			s.DiagnosticFileName,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(exportHeaders))
	if err != nil {
		return nil, err
	}
	f.SetColWidth(exportSheetName, "A", last, 15)
	f.SetPanes(exportSheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f.WriteToBuffer()
}
