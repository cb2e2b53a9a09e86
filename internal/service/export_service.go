package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	appErrors "github.com/antriver/moodle-enrol-self-parents/pkg/errors"
	"github.com/antriver/moodle-enrol-self-parents/pkg/export"
	"github.com/antriver/moodle-enrol-self-parents/pkg/storage"
)

// Roster export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type rosterRepo interface {
	ListRoster(ctx context.Context, instanceID int64) ([]models.RosterEntry, error)
}

// RosterExport is a rendered roster document.
type RosterExport struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Body        []byte `json:"body"`
}

// ExportService renders the roster of an instance as CSV or PDF, caching
// rendered documents briefly to keep repeated downloads off the database.
// With an archive configured, each rendered document is also kept on disk.
type ExportService struct {
	enrolments rosterRepo
	instances  instanceRepository
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	cache      cacheStore
	archive    *storage.Archive
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewExportService constructs ExportService. cache and archive may be nil.
func NewExportService(enrolments rosterRepo, instances instanceRepository, cache cacheStore, archive *storage.Archive, cacheTTL time.Duration, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrolments: enrolments,
		instances:  instances,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cache:      cache,
		archive:    archive,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Roster renders the active roster of the instance in the requested format.
func (s *ExportService) Roster(ctx context.Context, instanceID int64, format string) (*RosterExport, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	cacheKey := fmt.Sprintf("roster:%d:%s", instanceID, format)
	if s.cache != nil {
		var cached RosterExport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrolment instance %d not found", instanceID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instance")
	}

	entries, err := s.enrolments.ListRoster(ctx, instanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Username", "First name", "Last name", "Parent", "Enrolled", "Ends"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		parent := "no"
		if instance.ParentRoleID != 0 && entry.RoleID == instance.ParentRoleID {
			parent = "yes"
		}
		ends := ""
		if entry.TimeEnd > 0 {
			ends = time.Unix(entry.TimeEnd, 0).UTC().Format("2006-01-02")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Username":   entry.Username,
			"First name": entry.FirstName,
			"Last name":  entry.LastName,
			"Parent":     parent,
			"Enrolled":   time.Unix(entry.TimeStart, 0).UTC().Format("2006-01-02"),
			"Ends":       ends,
		})
	}

	result := &RosterExport{
		Filename: "roster-" + strconv.FormatInt(instanceID, 10) + "." + format,
	}
	switch format {
	case FormatCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		result.ContentType = "text/csv"
		result.Body = body
	case FormatPDF:
		body, err := s.pdf.Render(dataset, fmt.Sprintf("Enrolment roster %d", instanceID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		result.ContentType = "application/pdf"
		result.Body = body
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Debug("roster cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	if s.archive != nil {
		name := fmt.Sprintf("roster-%d-%s.%s", instanceID, time.Now().UTC().Format("20060102-150405"), format)
		if _, err := s.archive.Save(name, result.Body); err != nil {
			s.logger.Warn("roster archive write failed", zap.String("filename", name), zap.Error(err))
		}
	}
	return result, nil
}
