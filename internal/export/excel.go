package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kurort/internal/domain"
	"kurort/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Брони"

// Exporter строит Excel отчеты по броням для менеджеров.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger *zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{repo: repo, path: path, logger: logger}
}

// ExportReservations создает Excel файл с бронями за период
func (e *Exporter) ExportReservations(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	reservations, err := e.repo.GetReservationsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting reservations: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	// Заголовок периода
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "J1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	e.writeHeaders(f)
	e.writeReservations(f, reservations)

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "B", 25)
	_ = f.SetColWidth(sheetName, "C", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "E", 14)
	_ = f.SetColWidth(sheetName, "F", "F", 8)
	_ = f.SetColWidth(sheetName, "G", "G", 14)
	_ = f.SetColWidth(sheetName, "H", "I", 20)
	_ = f.SetColWidth(sheetName, "J", "J", 20)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("reservations", len(reservations)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeHeaders(f *excelize.File) {
	headers := []string{
		"ID", "Номер", "Гость", "Заезд", "Выезд", "Ночей",
		"Статус", "Оплата", "Причина отмены", "Создана",
	}

	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *Exporter) writeReservations(f *excelize.File, reservations []*models.Reservation) {
	for i, r := range reservations {
		row := i + 3

		roomName := fmt.Sprintf("%d", r.RoomID)
		if room, err := e.repo.GetRoomByID(context.Background(), r.RoomID); err == nil {
			roomName = room.Name
		}

		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), roomName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.GuestID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.CheckIn.Format("02.01.2006"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.CheckOut.Format("02.01.2006"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.Nights())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), statusLabel(r.Status))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.PaymentRef)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), r.CancelReason)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), r.CreatedAt.Format("02.01.2006 15:04"))

		if styleID, err := e.statusStyle(f, r.Status); err == nil {
			cell := fmt.Sprintf("G%d", row)
			_ = f.SetCellStyle(sheetName, cell, cell, styleID)
		}
	}
}

// statusStyle возвращает заливку по статусу брони
func (e *Exporter) statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusConfirmed:
		color = "#C6EFCE" // зеленый
	case models.StatusPending:
		color = "#FFEB9C" // желтый
	case models.StatusCancelled, models.StatusExpired:
		color = "#FFC7CE" // красный
	default:
		color = "#FFFFFF"
	}

	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

func statusLabel(status string) string {
	switch status {
	case models.StatusPending:
		return "Ожидает оплаты"
	case models.StatusConfirmed:
		return "Подтверждена"
	case models.StatusCancelled:
		return "Отменена"
	case models.StatusExpired:
		return "Истекла"
	}
	return status
}
