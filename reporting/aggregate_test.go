package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittool/models"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func makeNC(ncType, status, department string, reported *time.Time) models.NonConformity {
	return models.NonConformity{
		NcType:        ncType,
		NcStatus:      status,
		Department:    department,
		ReportingDate: reported,
	}
}

func TestAuditCountsByYear_PlannedVsExecuted(t *testing.T) {
	audits := []models.AuditPlan{
		{AuditType: "internal", Status: models.AuditStatusPlanned, PlannedDate: datePtr(2024, 3, 1)},
		{AuditType: "external", Status: models.AuditStatusPlanned, PlannedDate: datePtr(2024, 4, 1)},
		{AuditType: "internal", Status: models.AuditStatusExecuted, PlannedDate: datePtr(2024, 5, 1)},
		{AuditType: "internal", Status: models.AuditStatusCompleted, PlannedDate: datePtr(2024, 6, 1)},
		{AuditType: "external", Status: models.AuditStatusExecuted, PlannedDate: datePtr(2023, 6, 1)},
	}

	counts := AuditCountsByYear(audits)
	require.Len(t, counts, 2)

	assert.Equal(t, "2023", counts[0].Year)
	assert.Equal(t, 1, counts[0].ExecutedExternal)

	assert.Equal(t, "2024", counts[1].Year)
	assert.Equal(t, 1, counts[1].PlannedInternal)
	assert.Equal(t, 1, counts[1].PlannedExternal)
	// Executed and Completed both count as executed.
	assert.Equal(t, 2, counts[1].ExecutedInternal)
	assert.Equal(t, 0, counts[1].ExecutedExternal)
}

func TestAuditCountsByYear_UnknownTypeCountsExternalWhenExecuted(t *testing.T) {
	audits := []models.AuditPlan{
		{AuditType: "surveillance", Status: models.AuditStatusExecuted, PlannedDate: datePtr(2024, 1, 1)},
		{AuditType: "surveillance", Status: models.AuditStatusPlanned, PlannedDate: datePtr(2024, 1, 2)},
	}

	counts := AuditCountsByYear(audits)
	require.Len(t, counts, 1)
	assert.Equal(t, 1, counts[0].ExecutedExternal)
	// Planned audits of an unrecognized type fall into neither planned bucket.
	assert.Equal(t, 0, counts[0].PlannedInternal)
	assert.Equal(t, 0, counts[0].PlannedExternal)
}

func TestAuditCountsByYear_SkipsMissingPlannedDate(t *testing.T) {
	audits := []models.AuditPlan{
		{AuditType: "internal", Status: models.AuditStatusPlanned},
	}
	assert.Empty(t, AuditCountsByYear(audits))
}

func TestCountByType_OpenAndClosedSlices(t *testing.T) {
	ncs := []models.NonConformity{
		makeNC("Minor", "Open", "", datePtr(2024, 1, 1)),
		makeNC("Minor", "Closed", "", datePtr(2024, 2, 1)),
		makeNC("Major", "Open", "", datePtr(2024, 3, 1)),
	}

	reported := CountByType(ncs, "", "")
	assert.Equal(t, TypeCounts{Minor: 2, Major: 1}, reported)

	open := CountByType(ncs, "open", "")
	assert.Equal(t, TypeCounts{Minor: 1, Major: 1}, open)

	closed := CountByType(ncs, "closed", "")
	assert.Equal(t, TypeCounts{Minor: 1}, closed)
}

func TestCountByType_NormalizesCaseAndWhitespace(t *testing.T) {
	ncs := []models.NonConformity{
		makeNC("  minor ", " OPEN ", "", datePtr(2024, 1, 1)),
		makeNC("OBSERVATION", "open", "", datePtr(2024, 1, 2)),
	}

	open := CountByType(ncs, "Open", "")
	assert.Equal(t, TypeCounts{Minor: 1, Observation: 1}, open)
}

func TestCountByType_YearFilter(t *testing.T) {
	ncs := []models.NonConformity{
		makeNC("Minor", "Open", "", datePtr(2023, 5, 1)),
		makeNC("Minor", "Open", "", datePtr(2024, 5, 1)),
	}

	assert.Equal(t, TypeCounts{Minor: 1}, CountByType(ncs, "", "2024"))
	assert.Equal(t, TypeCounts{Minor: 2}, CountByType(ncs, "", "all"))
	assert.Equal(t, TypeCounts{Minor: 2}, CountByType(ncs, "", ""))
}

func TestDepartmentBreakdown_RowPerCanonicalDepartment(t *testing.T) {
	ncs := []models.NonConformity{
		makeNC("Minor", "Open", "Human Resource", datePtr(2024, 1, 1)),
		makeNC("Major", "Closed", "human resource", datePtr(2024, 2, 1)),
		makeNC("Minor", "Open", "No Such Department", datePtr(2024, 3, 1)),
	}

	rows := DepartmentBreakdown(ncs, "")
	require.Len(t, rows, len(Departments))

	assert.Equal(t, "Human Resource", rows[0].Department)
	assert.Equal(t, 1, rows[0].OpenMinor)
	assert.Equal(t, 1, rows[0].ClosedMajor)

	// The unmatched department is dropped, not added as a new row.
	total := 0
	for _, row := range rows {
		total += row.OpenMinor + row.OpenMajor + row.OpenObservation +
			row.ClosedMinor + row.ClosedMajor + row.ClosedObservation
	}
	assert.Equal(t, 2, total)
}

func TestYears_DistinctNewestFirst(t *testing.T) {
	ncs := []models.NonConformity{
		makeNC("Minor", "Open", "", datePtr(2022, 1, 1)),
		makeNC("Minor", "Open", "", datePtr(2024, 1, 1)),
		makeNC("Minor", "Open", "", datePtr(2024, 6, 1)),
		makeNC("Minor", "Open", "", nil),
	}

	assert.Equal(t, []string{"2024", "2022"}, Years(ncs))
}
