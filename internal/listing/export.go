package listing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/guard-forms/pkg/export"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var titles = map[string]string{
	KindUsers:     "Пользователи",
	KindEmployees: "Сотрудники",
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Exporter renders lists to files.
type Exporter struct {
	lists *Service
	csv   *export.CSVExporter
	pdf   *export.PDFExporter
	xlsx  *export.XLSXExporter
	now   func() time.Time
}

// NewExporter renders pages of lists. pdfFont is an optional UTF-8 TTF.
func NewExporter(lists *Service, pdfFont string) *Exporter {
	return &Exporter{
		lists: lists,
		csv:   export.NewCSVExporter(),
		pdf:   export.NewPDFExporter(pdfFont),
		xlsx:  export.NewXLSXExporter(),
		now:   time.Now,
	}
}

// Export loads kind with filter and renders it in format.
func (e *Exporter) Export(ctx context.Context, kind string, filter FilterState, format string) (*File, error) {
	page, err := e.lists.Load(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	data := Dataset(page)
	title := titles[kind]
	stamp := e.now().Format("20060102-150405")

	var out []byte
	file := &File{}
	switch format {
	case FormatCSV, "":
		out, err = e.csv.Render(data)
		file.ContentType = "text/csv; charset=utf-8"
		file.Name = fmt.Sprintf("%s-%s.csv", kind, stamp)
	case FormatPDF:
		out, err = e.pdf.Render(data, title)
		file.ContentType = "application/pdf"
		file.Name = fmt.Sprintf("%s-%s.pdf", kind, stamp)
	case FormatXLSX:
		out, err = e.xlsx.Render(data, title)
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		file.Name = fmt.Sprintf("%s-%s.xlsx", kind, stamp)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}
	file.Data = out
	return file, nil
}

// Dataset flattens a page into export rows.
func Dataset(page *Page) export.Dataset {
	switch page.Kind {
	case KindUsers:
		ds := export.Dataset{Headers: []string{"ID", "Логин", "Email", "Фамилия", "Имя"}}
		for _, u := range page.Users {
			ds.Rows = append(ds.Rows, map[string]string{
				"ID":      strconv.FormatInt(u.ID, 10),
				"Логин":   u.Username,
				"Email":   u.Email,
				"Фамилия": u.LastName,
				"Имя":     u.FirstName,
			})
		}
		return ds
	default:
		ds := export.Dataset{Headers: []string{"ФИО", "Пол", "Дата рождения", "Должность", "Подразделение", "Статус", "Обучение"}}
		for _, e := range page.Employees {
			training := "Нет"
			if e.IsEdu {
				training = "Да"
			}
			ds.Rows = append(ds.Rows, map[string]string{
				"ФИО":           e.FIO,
				"Пол":           e.Gender,
				"Дата рождения": e.Birthday,
				"Должность":     e.Position,
				"Подразделение": e.Department,
				"Статус":        e.Status,
				"Обучение":      training,
			})
		}
		return ds
	}
}
