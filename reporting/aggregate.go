// Package reporting holds the pure, stateless transforms behind the
// dashboard: grouped audit and non-conformity counts recomputed in full from
// already-fetched record lists.
package reporting

import (
	"log"
	"sort"
	"strings"

	"audittool/models"
)

// Departments is the canonical list used for the departmental breakdown.
// Record departments are matched against it after normalization; anything
// else is dropped from the chart.
var Departments = []string{
	"Human Resource",
	"Information Technology",
	"Security and Compliance",
	"Technical Support - Operations",
	"Technical Support Telco and Routing",
	"Business and Growth Govt Sales",
	"Business and Growth Enterprise Sales",
	"Business and Growth International Sales",
	"Finance Account",
	"Finance Legal",
	"Finance Revenue Assurance",
	"Product Management",
	"Research and Development",
}

// YearAuditCounts groups audit plans for one calendar year.
type YearAuditCounts struct {
	Year             string `json:"year"`
	PlannedInternal  int    `json:"plannedInternal"`
	PlannedExternal  int    `json:"plannedExternal"`
	ExecutedInternal int    `json:"executedInternal"`
	ExecutedExternal int    `json:"executedExternal"`
}

// AuditCountsByYear buckets plans by planned-date year. Executed and
// Completed both count as executed; an executed audit with an unrecognized
// type counts as external.
func AuditCountsByYear(audits []models.AuditPlan) []YearAuditCounts {
	byYear := map[string]*YearAuditCounts{}

	for _, a := range audits {
		if a.PlannedDate == nil {
			continue
		}
		year := a.PlannedDate.Format("2006")
		c, ok := byYear[year]
		if !ok {
			c = &YearAuditCounts{Year: year}
			byYear[year] = c
		}

		auditType := strings.ToLower(strings.TrimSpace(a.AuditType))
		switch a.Status {
		case models.AuditStatusPlanned:
			if auditType == "internal" {
				c.PlannedInternal++
			} else if auditType == "external" {
				c.PlannedExternal++
			}
		case models.AuditStatusExecuted, models.AuditStatusCompleted:
			if auditType == "internal" {
				c.ExecutedInternal++
			} else {
				c.ExecutedExternal++
			}
		}
	}

	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	out := make([]YearAuditCounts, 0, len(years))
	for _, y := range years {
		out = append(out, *byYear[y])
	}
	return out
}

// TypeCounts is a pie series over non-conformity categories.
type TypeCounts struct {
	Minor       int `json:"Minor"`
	Major       int `json:"Major"`
	Observation int `json:"Observation"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ncYear(nc models.NonConformity) string {
	if nc.ReportingDate == nil {
		return ""
	}
	return nc.ReportingDate.Format("2006")
}

// CountByType tallies non-conformities per category. statusFilter narrows to
// one lifecycle status ("" keeps all); yearFilter narrows to one reporting
// year ("" or "all" keeps all). Matching is case and whitespace insensitive.
func CountByType(ncs []models.NonConformity, statusFilter, yearFilter string) TypeCounts {
	var counts TypeCounts
	statusFilter = normalize(statusFilter)

	for _, nc := range ncs {
		if statusFilter != "" && normalize(nc.NcStatus) != statusFilter {
			continue
		}
		if yearFilter != "" && yearFilter != "all" && ncYear(nc) != yearFilter {
			continue
		}
		switch normalize(nc.NcType) {
		case "minor":
			counts.Minor++
		case "major":
			counts.Major++
		case "observation":
			counts.Observation++
		}
	}
	return counts
}

// DepartmentCounts is one row of the open-vs-closed departmental chart.
type DepartmentCounts struct {
	Department        string `json:"department"`
	OpenMinor         int    `json:"openMinor"`
	OpenMajor         int    `json:"openMajor"`
	OpenObservation   int    `json:"openObservation"`
	ClosedMinor       int    `json:"closedMinor"`
	ClosedMajor       int    `json:"closedMajor"`
	ClosedObservation int    `json:"closedObservation"`
}

// DepartmentBreakdown returns a row for every canonical department, in
// order, counting open and closed non-conformities per category. Records
// whose department does not normalize to a canonical entry are logged and
// skipped.
func DepartmentBreakdown(ncs []models.NonConformity, yearFilter string) []DepartmentCounts {
	index := map[string]int{}
	rows := make([]DepartmentCounts, len(Departments))
	for i, d := range Departments {
		rows[i] = DepartmentCounts{Department: d}
		index[normalize(d)] = i
	}

	for _, nc := range ncs {
		if yearFilter != "" && yearFilter != "all" && ncYear(nc) != yearFilter {
			continue
		}

		i, ok := index[normalize(nc.Department)]
		if !ok {
			log.Printf("reporting: unmatched department %q dropped from breakdown", nc.Department)
			continue
		}

		category := normalize(nc.NcType)
		switch normalize(nc.NcStatus) {
		case "open":
			switch category {
			case "minor":
				rows[i].OpenMinor++
			case "major":
				rows[i].OpenMajor++
			case "observation":
				rows[i].OpenObservation++
			}
		case "closed":
			switch category {
			case "minor":
				rows[i].ClosedMinor++
			case "major":
				rows[i].ClosedMajor++
			case "observation":
				rows[i].ClosedObservation++
			}
		}
	}

	return rows
}

// Years lists the distinct reporting years present, newest first.
func Years(ncs []models.NonConformity) []string {
	seen := map[string]bool{}
	for _, nc := range ncs {
		if y := ncYear(nc); y != "" {
			seen[y] = true
		}
	}
	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}
