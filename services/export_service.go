package services

import (
	"context"
	"fmt"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ExportService builds spreadsheet exports of listing data
type ExportService struct {
	propertyService *PropertyService
	logger          *logrus.Logger
}

// NewExportService creates a new export service
func NewExportService(propertyService *PropertyService) *ExportService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &ExportService{
		propertyService: propertyService,
		logger:          logger,
	}
}

var exportHeaders = []string{
	"Listing ID", "Address", "City", "Area", "Postcode",
	"Rent PCM", "Beds", "Rooms Let", "Property Type",
	"Bills Included", "Ensuite", "Status", "Available From",
	"First Seen", "Last Seen", "Source", "URL",
}

// ExportProperties writes the filtered listing set to an XLSX workbook
// and returns the serialized bytes ready for download.
func (s *ExportService) ExportProperties(ctx context.Context, filter PropertyFilter) ([]byte, string, error) {
	properties, err := s.propertyService.GetProperties(ctx, filter)
	if err != nil {
		return nil, "", shared.NewServiceError(
			shared.ErrorCategoryDatabase,
			"EXPORT_QUERY_FAILED",
			"Failed to load listings for export",
			"Export_Service",
			"ExportProperties",
			true,
			err,
		)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close workbook")
		}
	}()

	const sheet = "Listings"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		endCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
		f.SetCellStyle(sheet, "A1", endCol+"1", headerStyle)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for rowIdx, property := range properties {
		row := buildExportRow(property)
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("hmo-listings-%s.xlsx", time.Now().Format("2006-01-02"))

	s.logger.WithFields(logrus.Fields{
		"rows":     len(properties),
		"filename": filename,
	}).Info("Generated listing export")

	return buf.Bytes(), filename, nil
}

func buildExportRow(p models.Property) []interface{} {
	row := make([]interface{}, 0, len(exportHeaders))

	row = append(row, p.ListingID, p.Address, p.City, derefString(p.Area), derefString(p.Postcode))
	row = append(row, derefFloat(p.RentPCM), derefInt(p.Beds), derefInt(p.RoomsLet))
	row = append(row, derefString(p.PropertyType))
	row = append(row, derefBool(p.BillsIncluded), derefBool(p.Ensuite))
	row = append(row, p.Status)
	row = append(row, formatExportDate(p.AvailableFrom))
	row = append(row, formatExportDate(p.FirstSeen), formatExportDate(p.LastSeen))
	row = append(row, p.Source, derefString(p.URL))

	return row
}

func derefFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "Yes"
	}
	return "No"
}

func formatExportDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
