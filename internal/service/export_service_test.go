package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/storage"
)

type fakeRoster struct {
	entries []models.RosterEntry
}

func (f *fakeRoster) ListRoster(ctx context.Context, instanceID int64) ([]models.RosterEntry, error) {
	return f.entries, nil
}

func rosterEntry(userID, roleID int64, username, first, last string, start, end int64) models.RosterEntry {
	return models.RosterEntry{
		Enrolment: models.Enrolment{
			InstanceID: 1, UserID: userID, RoleID: roleID,
			TimeStart: start, TimeEnd: end, Status: models.EnrolmentStatusActive,
		},
		Username: username, FirstName: first, LastName: last,
	}
}

func TestExportRosterCSV(t *testing.T) {
	roster := &fakeRoster{entries: []models.RosterEntry{
		rosterEntry(100, 5, "alex", "Alex", "Tester", 1700000000, 1702592000),
		rosterEntry(300, 9, "pat", "Pat", "Tester", 1700000000, 0),
	}}
	instances := &fakeInstances{instances: map[int64]*models.Instance{1: testInstance()}}
	svc := NewExportService(roster, instances, nil, nil, 0, zap.NewNop())

	doc, err := svc.Roster(context.Background(), 1, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)
	assert.Equal(t, "roster-1.csv", doc.Filename)

	lines := strings.Split(strings.TrimSpace(string(doc.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Username,First name,Last name,Parent,Enrolled,Ends", lines[0])
	assert.Contains(t, lines[1], "alex")
	assert.Contains(t, lines[1], ",no,")
	assert.Contains(t, lines[2], "pat")
	assert.Contains(t, lines[2], ",yes,")
}

func TestExportRosterPDF(t *testing.T) {
	roster := &fakeRoster{entries: []models.RosterEntry{
		rosterEntry(100, 5, "alex", "Alex", "Tester", 1700000000, 0),
	}}
	instances := &fakeInstances{instances: map[int64]*models.Instance{1: testInstance()}}
	svc := NewExportService(roster, instances, nil, nil, 0, zap.NewNop())

	doc, err := svc.Roster(context.Background(), 1, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, strings.HasPrefix(string(doc.Body), "%PDF"))
}

func TestExportRosterArchivesRenderedDocument(t *testing.T) {
	dir := t.TempDir()
	archive, err := storage.NewArchive(dir)
	require.NoError(t, err)

	roster := &fakeRoster{entries: []models.RosterEntry{
		rosterEntry(100, 5, "alex", "Alex", "Tester", 1700000000, 0),
	}}
	instances := &fakeInstances{instances: map[int64]*models.Instance{1: testInstance()}}
	svc := NewExportService(roster, instances, nil, archive, 0, zap.NewNop())

	doc, err := svc.Roster(context.Background(), 1, FormatCSV)
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "roster-1-"))

	saved, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, doc.Body, saved)
}

func TestExportRosterRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&fakeRoster{}, &fakeInstances{}, nil, nil, 0, zap.NewNop())

	_, err := svc.Roster(context.Background(), 1, "xlsx")
	require.Error(t, err)
}

func TestExportRosterUnknownInstance(t *testing.T) {
	svc := NewExportService(&fakeRoster{}, &fakeInstances{}, nil, nil, 0, zap.NewNop())

	_, err := svc.Roster(context.Background(), 42, FormatCSV)
	require.Error(t, err)
}
