// handlers/dashboard_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"audittool/models"
	"audittool/reporting"
	"audittool/utils"
)

// fetchNCsForCaller loads the non-conformity slice the caller is allowed to
// see: everything for privileged roles, only their own records otherwise.
func fetchNCsForCaller(ctx context.Context, c callerIdentity) ([]models.NonConformity, error) {
	filter := bson.M{}
	if !models.IsPrivileged(c.Role) {
		filter["responsibleperson.email"] = c.Email
	}

	cursor, err := ncCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ncs []models.NonConformity
	if err := cursor.All(ctx, &ncs); err != nil {
		return nil, err
	}
	return ncs, nil
}

// AuditDashboard returns audit plan counts grouped by planned year, split
// planned/executed and internal/external.
func AuditDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	cursor, err := auditPlanCollection.Find(ctx, bson.M{})
	if err != nil {
		log.Printf("audit dashboard Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var audits []models.AuditPlan
	if err := cursor.All(ctx, &audits); err != nil {
		log.Printf("audit dashboard decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode audit plans")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"byYear": reporting.AuditCountsByYear(audits),
	})
}

// NonConformityDashboard returns the pie series: all reported, open and
// closed counts per category, plus the distinct reporting years for the
// year selector. ?year= narrows every series to one reporting year.
func NonConformityDashboard(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ncs, err := fetchNCsForCaller(ctx, c)
	if err != nil {
		log.Printf("nc dashboard query error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	year := r.URL.Query().Get("year")
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reported": reporting.CountByType(ncs, "", year),
		"open":     reporting.CountByType(ncs, "open", year),
		"closed":   reporting.CountByType(ncs, "closed", year),
		"years":    reporting.Years(ncs),
	})
}

// DepartmentDashboard returns the open-vs-closed breakdown for every
// canonical department, optionally narrowed by ?year=.
func DepartmentDashboard(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ncs, err := fetchNCsForCaller(ctx, c)
	if err != nil {
		log.Printf("department dashboard query error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	year := r.URL.Query().Get("year")
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"departments": reporting.DepartmentBreakdown(ncs, year),
		"years":       reporting.Years(ncs),
	})
}
