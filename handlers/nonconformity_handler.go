// handlers/nonconformity_handler.go
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"audittool/config"
	"audittool/models"
	"audittool/reporting"
	"audittool/utils"
)

var ncDeleteRoles = []string{models.RoleAdmin, models.RoleAuditor, models.RoleSuperadmin}

// generateNcID builds the human-readable identifier assigned on create.
func generateNcID() string {
	timestamp := time.Now().Format("20060102")
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(10000))
	return fmt.Sprintf("NC-%s-%04d", timestamp, randomNum.Int64())
}

// ncForm is the multipart field set for create and update requests. The
// responsible person arrives as a JSON object string.
type ncForm struct {
	AuditID            string
	NcDescription      string
	NcClauseNo         string
	NcType             string
	Department         string
	ResponsiblePerson  models.ResponsiblePerson
	NcLocation         []string
	ReportingDate      *time.Time
	DueDate            *time.Time
	NcCorrectiveAction string
	NcPreventiveAction string
	NcRootCause        string
	NcStatus           string
	Files              []*multipart.FileHeader
}

func parseNCForm(r *http.Request) (*ncForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart payload")
	}

	form := &ncForm{
		AuditID:            strings.TrimSpace(r.FormValue("auditId")),
		NcDescription:      strings.TrimSpace(r.FormValue("ncDescription")),
		NcClauseNo:         strings.TrimSpace(r.FormValue("ncClauseNo")),
		NcType:             strings.TrimSpace(r.FormValue("ncType")),
		Department:         strings.TrimSpace(r.FormValue("department")),
		NcCorrectiveAction: r.FormValue("ncCorrectiveAction"),
		NcPreventiveAction: r.FormValue("ncPreventiveAction"),
		NcRootCause:        strings.TrimSpace(r.FormValue("ncRootCause")),
		NcStatus:           strings.TrimSpace(r.FormValue("ncstatus")),
	}

	if rp := r.FormValue("responsibleperson"); rp != "" {
		if err := json.Unmarshal([]byte(rp), &form.ResponsiblePerson); err != nil {
			return nil, fmt.Errorf("responsibleperson must be a JSON object with name and email")
		}
	}

	// nclocation may arrive as repeated form values or one JSON array.
	locations := r.Form["nclocation"]
	if len(locations) == 1 && strings.HasPrefix(strings.TrimSpace(locations[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(locations[0]), &parsed); err == nil {
			locations = parsed
		}
	}
	for _, l := range locations {
		if l = strings.TrimSpace(l); l != "" {
			form.NcLocation = append(form.NcLocation, l)
		}
	}

	var err error
	if form.ReportingDate, err = parseDate(r.FormValue("reportingDate")); err != nil {
		return nil, fmt.Errorf("reportingDate: %v", err)
	}
	if form.DueDate, err = parseDate(r.FormValue("dueDate")); err != nil {
		return nil, fmt.Errorf("dueDate: %v", err)
	}

	if r.MultipartForm != nil {
		form.Files = r.MultipartForm.File["attachments"]
	}
	return form, nil
}

// missingNCFields lists every absent required field, not just the first.
func missingNCFields(f *ncForm) []string {
	var missing []string
	if f.AuditID == "" {
		missing = append(missing, "auditId")
	}
	if f.NcDescription == "" {
		missing = append(missing, "ncDescription")
	}
	if f.NcClauseNo == "" {
		missing = append(missing, "ncClauseNo")
	}
	if f.NcType == "" {
		missing = append(missing, "ncType")
	}
	if f.DueDate == nil {
		missing = append(missing, "dueDate")
	}
	if f.Department == "" {
		missing = append(missing, "department")
	}
	if f.ResponsiblePerson.Name == "" || f.ResponsiblePerson.Email == "" {
		missing = append(missing, "responsibleperson")
	}
	if len(f.NcLocation) == 0 {
		missing = append(missing, "nclocation")
	}
	if f.NcRootCause == "" {
		missing = append(missing, "ncRootCause")
	}
	if f.NcStatus == "" {
		missing = append(missing, "ncstatus")
	}
	return missing
}

// validateNCDates enforces the reporting-date ordering: strictly before the
// due date, and strictly after the referenced audit's actual date when that
// audit is on file.
func validateNCDates(ctx context.Context, f *ncForm) error {
	if f.ReportingDate == nil {
		return nil
	}
	if f.DueDate != nil && !f.ReportingDate.Before(*f.DueDate) {
		return fmt.Errorf("reportingDate must be strictly before dueDate")
	}

	var audit models.AuditPlan
	err := auditPlanCollection.FindOne(ctx, bson.M{"auditId": f.AuditID}).Decode(&audit)
	if err != nil {
		// Unknown audit id: nothing to compare against.
		return nil
	}
	if audit.ActualDate != nil && !f.ReportingDate.After(*audit.ActualDate) {
		return fmt.Errorf("reportingDate must be after the audit's actual date")
	}
	return nil
}

// CreateNonConformity validates the full required-field list before any
// write, stores uploaded attachments and assigns the NC identifier.
func CreateNonConformity(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	form, err := parseNCForm(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if missing := missingNCFields(form); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := validateNCDates(ctx, form); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachments := []models.Attachment{}
	if len(form.Files) > 0 {
		attachments, err = utils.SaveUploadedFiles(form.Files, config.UploadDir, utils.DefaultAllowedExtensions)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	now := time.Now().UTC()
	nc := models.NonConformity{
		ID:                 primitive.NewObjectID(),
		NcID:               generateNcID(),
		AuditID:            form.AuditID,
		NcDescription:      form.NcDescription,
		NcClauseNo:         form.NcClauseNo,
		NcType:             form.NcType,
		Department:         form.Department,
		ResponsiblePerson:  form.ResponsiblePerson,
		NcLocation:         form.NcLocation,
		ReportingDate:      form.ReportingDate,
		DueDate:            form.DueDate,
		NcCorrectiveAction: form.NcCorrectiveAction,
		NcPreventiveAction: form.NcPreventiveAction,
		NcRootCause:        form.NcRootCause,
		NcStatus:           form.NcStatus,
		Attachments:        attachments,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := ncCollection.InsertOne(ctx, nc); err != nil {
		_ = utils.RemoveStoredFiles(attachments)
		log.Printf("insert nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving NonConformity")
		return
	}

	BroadcastRecordEvent("created", "nonconformity", nc.ID.Hex(), c.Name, nc)
	utils.RespondWithJSON(w, http.StatusCreated, nc)
}

// ListNonConformities scopes results by the caller's verified identity:
// privileged roles see everything, a base user only the records naming them
// as responsible person.
func ListNonConformities(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	filter := bson.M{}
	if !models.IsPrivileged(c.Role) {
		filter["responsibleperson.email"] = c.Email
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ncCollection.Find(ctx, filter, opts)
	if err != nil {
		log.Printf("nonconformities Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var ncs []models.NonConformity
	if err := cursor.All(ctx, &ncs); err != nil {
		log.Printf("nonconformities decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode nonconformities")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		filtered := ncs[:0]
		for _, nc := range ncs {
			if reporting.Matches(nc, q) {
				filtered = append(filtered, nc)
			}
		}
		ncs = filtered
	}
	if ncs == nil {
		ncs = []models.NonConformity{}
	}

	utils.RespondWithJSON(w, http.StatusOK, ncs)
}

func GetNonConformity(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ncID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid nonconformity id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var nc models.NonConformity
	err = ncCollection.FindOne(ctx, bson.M{"_id": ncID}).Decode(&nc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "NonConformity not found")
			return
		}
		log.Printf("find nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, nc)
}

// UpdateNonConformity lets privileged roles edit any record and base users
// only the records they are responsible for. Uploaded files replace the
// attachment set for this request; without files the existing set persists.
func UpdateNonConformity(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ncID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid nonconformity id")
		return
	}

	form, err := parseNCForm(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var existing models.NonConformity
	err = ncCollection.FindOne(ctx, bson.M{"_id": ncID}).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "NonConformity not found")
			return
		}
		log.Printf("find nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	if !models.IsPrivileged(c.Role) && existing.ResponsiblePerson.Email != c.Email {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden: not authorized to update this NonConformity")
		return
	}

	if form.ResponsiblePerson.Name == "" || form.ResponsiblePerson.Email == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Responsible person must have name and email.")
		return
	}

	if missing := missingNCFields(form); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}
	if err := validateNCDates(ctx, form); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	update := bson.M{
		"auditId":            form.AuditID,
		"ncDescription":      form.NcDescription,
		"ncClauseNo":         form.NcClauseNo,
		"ncType":             form.NcType,
		"department":         form.Department,
		"responsibleperson":  form.ResponsiblePerson,
		"nclocation":         form.NcLocation,
		"reportingDate":      form.ReportingDate,
		"dueDate":            form.DueDate,
		"ncCorrectiveAction": form.NcCorrectiveAction,
		"ncPreventiveAction": form.NcPreventiveAction,
		"ncRootCause":        form.NcRootCause,
		"ncstatus":           form.NcStatus,
		"updatedAt":          time.Now().UTC(),
	}

	var replaced []models.Attachment
	if len(form.Files) > 0 {
		attachments, err := utils.SaveUploadedFiles(form.Files, config.UploadDir, utils.DefaultAllowedExtensions)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		update["attachments"] = attachments
		replaced = existing.Attachments
	}

	if _, err := ncCollection.UpdateOne(ctx, bson.M{"_id": ncID}, bson.M{"$set": update}); err != nil {
		log.Printf("update nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to update NonConformity")
		return
	}

	if len(replaced) > 0 {
		if err := utils.RemoveStoredFiles(replaced); err != nil {
			log.Printf("nonconformity attachment cleanup: %v", err)
		}
	}

	var updated models.NonConformity
	if err := ncCollection.FindOne(ctx, bson.M{"_id": ncID}).Decode(&updated); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to fetch updated NonConformity")
		return
	}

	BroadcastRecordEvent("updated", "nonconformity", ncID.Hex(), c.Name, updated)
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DeleteNonConformity removes one record; privileged roles only.
func DeleteNonConformity(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, ncDeleteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden: only admin or auditor can delete nonconformities")
		return
	}

	ncID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid nonconformity id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var existing models.NonConformity
	err = ncCollection.FindOne(ctx, bson.M{"_id": ncID}).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "NonConformity not found")
			return
		}
		log.Printf("find nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	if _, err := ncCollection.DeleteOne(ctx, bson.M{"_id": ncID}); err != nil {
		log.Printf("delete nonconformity error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting nonconformity")
		return
	}

	if err := utils.RemoveStoredFiles(existing.Attachments); err != nil {
		log.Printf("nonconformity attachment cleanup: %v", err)
	}

	BroadcastRecordEvent("deleted", "nonconformity", ncID.Hex(), c.Name, nil)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

// BulkDeleteNonConformities deletes all matching ids and reports the subset
// actually removed.
func BulkDeleteNonConformities(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, ncDeleteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden: only admin or auditor can delete nonconformities")
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

	cursor, err := ncCollection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		log.Printf("bulk delete find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var matched []models.NonConformity
	if err := cursor.All(ctx, &matched); err != nil {
		log.Printf("bulk delete decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	deletedIDs := make([]string, 0, len(matched))
	var orphaned []models.Attachment
	for _, nc := range matched {
		deletedIDs = append(deletedIDs, nc.ID.Hex())
		orphaned = append(orphaned, nc.Attachments...)
	}

	if len(matched) > 0 {
		if _, err := ncCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}); err != nil {
			log.Printf("bulk delete error: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting nonconformities")
			return
		}
		if err := utils.RemoveStoredFiles(orphaned); err != nil {
			log.Printf("nonconformity attachment cleanup: %v", err)
		}
	}

	for _, id := range deletedIDs {
		BroadcastRecordEvent("deleted", "nonconformity", id, c.Name, nil)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deleted successfully",
		"deletedIds": deletedIDs,
	})
}
