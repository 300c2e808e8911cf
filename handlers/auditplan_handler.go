// handlers/auditplan_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"audittool/models"
	"audittool/reporting"
	"audittool/utils"
)

var auditPlanWriteRoles = []string{models.RoleAdmin, models.RoleAuditor, models.RoleSuperadmin}

// parseDate accepts RFC3339 timestamps or bare YYYY-MM-DD dates.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

type auditPlanRequest struct {
	AuditID            string   `json:"auditId"`
	AuditType          string   `json:"auditType"`
	Status             string   `json:"status"`
	PlannedDate        string   `json:"plannedDate"`
	ActualDate         string   `json:"actualdate"`
	Department         string   `json:"department"`
	Auditor            string   `json:"auditor"`
	ApplicableStandard []string `json:"applicableStandard"`
	Remarks            string   `json:"remarks"`
}

// missingAuditPlanFields lists every absent required field, not just the
// first.
func missingAuditPlanFields(req auditPlanRequest) []string {
	var missing []string
	if strings.TrimSpace(req.AuditID) == "" {
		missing = append(missing, "auditId")
	}
	if strings.TrimSpace(req.AuditType) == "" {
		missing = append(missing, "auditType")
	}
	if strings.TrimSpace(req.Status) == "" {
		missing = append(missing, "status")
	}
	if strings.TrimSpace(req.PlannedDate) == "" {
		missing = append(missing, "plannedDate")
	}
	return missing
}

// ListAuditPlans returns every plan, optionally narrowed by a q= full-text
// filter.
func ListAuditPlans(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := auditPlanCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Printf("audit plans Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var plans []models.AuditPlan
	if err := cursor.All(ctx, &plans); err != nil {
		log.Printf("audit plans decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode audit plans")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		filtered := plans[:0]
		for _, p := range plans {
			if reporting.Matches(p, q) {
				filtered = append(filtered, p)
			}
		}
		plans = filtered
	}
	if plans == nil {
		plans = []models.AuditPlan{}
	}

	utils.RespondWithJSON(w, http.StatusOK, plans)
}

func CreateAuditPlan(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, auditPlanWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create audit plan")
		return
	}

	var req auditPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if missing := missingAuditPlanFields(req); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	plannedDate, err := parseDate(req.PlannedDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "plannedDate: "+err.Error())
		return
	}
	actualDate, err := parseDate(req.ActualDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "actualdate: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	count, err := auditPlanCollection.CountDocuments(ctx, bson.M{"auditId": req.AuditID})
	if err != nil {
		log.Printf("audit plan dup check error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	if count > 0 {
		utils.RespondWithError(w, http.StatusConflict, "audit id already exists")
		return
	}

	now := time.Now().UTC()
	plan := models.AuditPlan{
		ID:                 primitive.NewObjectID(),
		AuditID:            strings.TrimSpace(req.AuditID),
		AuditType:          strings.ToLower(strings.TrimSpace(req.AuditType)),
		Status:             strings.TrimSpace(req.Status),
		PlannedDate:        plannedDate,
		ActualDate:         actualDate,
		Department:         req.Department,
		Auditor:            req.Auditor,
		ApplicableStandard: req.ApplicableStandard,
		Remarks:            req.Remarks,
		Attachments:        []models.Attachment{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := auditPlanCollection.InsertOne(ctx, plan); err != nil {
		log.Printf("insert audit plan error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to create audit plan")
		return
	}

	BroadcastRecordEvent("created", "auditplan", plan.ID.Hex(), c.Name, plan)
	utils.RespondWithJSON(w, http.StatusCreated, plan)
}

func GetAuditPlan(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	planID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid audit plan id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var plan models.AuditPlan
	err = auditPlanCollection.FindOne(ctx, bson.M{"_id": planID}).Decode(&plan)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "audit plan not found")
			return
		}
		log.Printf("find audit plan error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, plan)
}

func UpdateAuditPlan(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, auditPlanWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update audit plan")
		return
	}

	planID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid audit plan id")
		return
	}

	var req auditPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if missing := missingAuditPlanFields(req); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	plannedDate, err := parseDate(req.PlannedDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "plannedDate: "+err.Error())
		return
	}
	actualDate, err := parseDate(req.ActualDate)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "actualdate: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// auditId is immutable after creation; the stored value wins.
	update := bson.M{
		"auditType":          strings.ToLower(strings.TrimSpace(req.AuditType)),
		"status":             strings.TrimSpace(req.Status),
		"plannedDate":        plannedDate,
		"actualdate":         actualDate,
		"department":         req.Department,
		"auditor":            req.Auditor,
		"applicableStandard": req.ApplicableStandard,
		"remarks":            req.Remarks,
		"updatedAt":          time.Now().UTC(),
	}

	result, err := auditPlanCollection.UpdateOne(ctx, bson.M{"_id": planID}, bson.M{"$set": update})
	if err != nil {
		log.Printf("update audit plan error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to update audit plan")
		return
	}
	if result.MatchedCount == 0 {
		utils.RespondWithError(w, http.StatusNotFound, "audit plan not found")
		return
	}

	var updated models.AuditPlan
	if err := auditPlanCollection.FindOne(ctx, bson.M{"_id": planID}).Decode(&updated); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to fetch updated audit plan")
		return
	}

	BroadcastRecordEvent("updated", "auditplan", planID.Hex(), c.Name, updated)
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DeleteAuditPlan removes one plan. Only plans still in Planned status are
// deletable.
func DeleteAuditPlan(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, auditPlanWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete audit plan")
		return
	}

	planID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid audit plan id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var plan models.AuditPlan
	err = auditPlanCollection.FindOne(ctx, bson.M{"_id": planID}).Decode(&plan)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "audit plan not found")
			return
		}
		log.Printf("find audit plan error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(plan.Status), models.AuditStatusPlanned) {
		utils.RespondWithError(w, http.StatusBadRequest, "Audits with status 'executed' & 'completed' can't be deleted.")
		return
	}

	if _, err := auditPlanCollection.DeleteOne(ctx, bson.M{"_id": planID}); err != nil {
		log.Printf("delete audit plan error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to delete audit plan")
		return
	}

	if err := utils.RemoveStoredFiles(plan.Attachments); err != nil {
		log.Printf("audit plan attachment cleanup: %v", err)
	}

	BroadcastRecordEvent("deleted", "auditplan", planID.Hex(), c.Name, nil)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

// BulkDeleteAuditPlans deletes a set of plans in one request. The whole
// batch is rejected when any matched plan is past Planned status; ids that
// do not exist are skipped and reported through deletedIds.
func BulkDeleteAuditPlans(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, auditPlanWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete audit plans")
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "ids required")
		return
	}

	objectIDs := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, id := range req.IDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid id: "+id)
			return
		}
		objectIDs = append(objectIDs, oid)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	cursor, err := auditPlanCollection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		log.Printf("bulk delete find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var matched []models.AuditPlan
	if err := cursor.All(ctx, &matched); err != nil {
		log.Printf("bulk delete decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	for _, plan := range matched {
		if !strings.EqualFold(strings.TrimSpace(plan.Status), models.AuditStatusPlanned) {
			utils.RespondWithError(w, http.StatusBadRequest, "Audits with status 'executed' & 'completed' can't be deleted.")
			return
		}
	}

	deletedIDs := make([]string, 0, len(matched))
	var orphaned []models.Attachment
	for _, plan := range matched {
		deletedIDs = append(deletedIDs, plan.ID.Hex())
		orphaned = append(orphaned, plan.Attachments...)
	}

	if len(matched) > 0 {
		if _, err := auditPlanCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}); err != nil {
			log.Printf("bulk delete error: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting audits")
			return
		}
		if err := utils.RemoveStoredFiles(orphaned); err != nil {
			log.Printf("audit plan attachment cleanup: %v", err)
		}
	}

	for _, id := range deletedIDs {
		BroadcastRecordEvent("deleted", "auditplan", id, c.Name, nil)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deleted successfully",
		"deletedIds": deletedIDs,
	})
}
