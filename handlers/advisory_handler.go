// handlers/advisory_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
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

// Advisories have their own shape and a narrower attachment allow-list, so
// they do not ride the shared document handler.
var advisoryWriteRoles = []string{models.RoleAdmin, models.RoleSuperadmin}

type advisoryForm struct {
	AdvisoryID    string
	AdvisoryTitle string
	Date          *time.Time
}

func parseAdvisoryForm(r *http.Request) (*advisoryForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}
	form := &advisoryForm{
		AdvisoryID:    strings.TrimSpace(r.FormValue("advisoryId")),
		AdvisoryTitle: strings.TrimSpace(r.FormValue("advisorytitle")),
	}
	var err error
	if form.Date, err = parseDate(r.FormValue("Date")); err != nil {
		return nil, err
	}
	// Some clients send lowercase "date".
	if form.Date == nil {
		if form.Date, err = parseDate(r.FormValue("date")); err != nil {
			return nil, err
		}
	}
	return form, nil
}

func missingAdvisoryFields(f *advisoryForm) []string {
	var missing []string
	if f.AdvisoryID == "" {
		missing = append(missing, "advisoryId")
	}
	if f.AdvisoryTitle == "" {
		missing = append(missing, "advisorytitle")
	}
	if f.Date == nil {
		missing = append(missing, "Date")
	}
	return missing
}

func CreateAdvisory(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, advisoryWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create advisory")
		return
	}

	form, err := parseAdvisoryForm(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	if missing := missingAdvisoryFields(form); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	count, err := advisoryCollection.CountDocuments(ctx, bson.M{"advisoryId": form.AdvisoryID})
	if err != nil {
		log.Printf("advisory lookup error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	if count > 0 {
		utils.RespondWithError(w, http.StatusConflict, "advisory with this advisoryId already exists")
		return
	}

	attachments := []models.Attachment{}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["attachments"]; len(files) > 0 {
			attachments, err = utils.SaveUploadedFiles(files, config.UploadDir, utils.AdvisoryAllowedExtensions)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	}

	now := time.Now().UTC()
	advisory := models.Advisory{
		ID:            primitive.NewObjectID(),
		AdvisoryID:    form.AdvisoryID,
		AdvisoryTitle: form.AdvisoryTitle,
		Date:          form.Date,
		Attachments:   attachments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := advisoryCollection.InsertOne(ctx, advisory); err != nil {
		_ = utils.RemoveStoredFiles(attachments)
		log.Printf("insert advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving advisory")
		return
	}

	BroadcastRecordEvent("created", "advisory", advisory.ID.Hex(), c.Name, advisory)
	utils.RespondWithJSON(w, http.StatusCreated, advisory)
}

func ListAdvisories(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := advisoryCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Printf("advisories Find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	defer cursor.Close(ctx)

	var advisories []models.Advisory
	if err := cursor.All(ctx, &advisories); err != nil {
		log.Printf("advisories decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode advisories")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		filtered := advisories[:0]
		for _, a := range advisories {
			if reporting.Matches(a, q) {
				filtered = append(filtered, a)
			}
		}
		advisories = filtered
	}
	if advisories == nil {
		advisories = []models.Advisory{}
	}

	utils.RespondWithJSON(w, http.StatusOK, advisories)
}

func GetAdvisory(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(r); !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	advisoryID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid advisory id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var advisory models.Advisory
	err = advisoryCollection.FindOne(ctx, bson.M{"_id": advisoryID}).Decode(&advisory)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "advisory not found")
			return
		}
		log.Printf("find advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, advisory)
}

// UpdateAdvisory keeps advisoryId immutable; uploaded files replace the
// attachment set for this request.
func UpdateAdvisory(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, advisoryWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update advisory")
		return
	}

	advisoryID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid advisory id")
		return
	}

	form, err := parseAdvisoryForm(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	if missing := missingAdvisoryFields(form); len(missing) > 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var existing models.Advisory
	err = advisoryCollection.FindOne(ctx, bson.M{"_id": advisoryID}).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "advisory not found")
			return
		}
		log.Printf("find advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	if form.AdvisoryID != existing.AdvisoryID {
		utils.RespondWithError(w, http.StatusBadRequest, "advisoryId cannot be changed")
		return
	}

	update := bson.M{
		"advisorytitle": form.AdvisoryTitle,
		"Date":          form.Date,
		"updatedAt":     time.Now().UTC(),
	}

	var replaced []models.Attachment
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["attachments"]; len(files) > 0 {
			attachments, err := utils.SaveUploadedFiles(files, config.UploadDir, utils.AdvisoryAllowedExtensions)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			update["attachments"] = attachments
			replaced = existing.Attachments
		}
	}

	if _, err := advisoryCollection.UpdateOne(ctx, bson.M{"_id": advisoryID}, bson.M{"$set": update}); err != nil {
		log.Printf("update advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to update advisory")
		return
	}

	if len(replaced) > 0 {
		if err := utils.RemoveStoredFiles(replaced); err != nil {
			log.Printf("advisory attachment cleanup: %v", err)
		}
	}

	var updated models.Advisory
	if err := advisoryCollection.FindOne(ctx, bson.M{"_id": advisoryID}).Decode(&updated); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to fetch updated advisory")
		return
	}

	BroadcastRecordEvent("updated", "advisory", advisoryID.Hex(), c.Name, updated)
	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func DeleteAdvisory(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, advisoryWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete advisory")
		return
	}

	advisoryID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid advisory id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var existing models.Advisory
	err = advisoryCollection.FindOne(ctx, bson.M{"_id": advisoryID}).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "advisory not found")
			return
		}
		log.Printf("find advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	if _, err := advisoryCollection.DeleteOne(ctx, bson.M{"_id": advisoryID}); err != nil {
		log.Printf("delete advisory error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting advisory")
		return
	}

	if err := utils.RemoveStoredFiles(existing.Attachments); err != nil {
		log.Printf("advisory attachment cleanup: %v", err)
	}

	BroadcastRecordEvent("deleted", "advisory", advisoryID.Hex(), c.Name, nil)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

func BulkDeleteAdvisories(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, advisoryWriteRoles) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete advisory")
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

	cursor, err := advisoryCollection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		log.Printf("advisory bulk delete find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}
	var matched []models.Advisory
	if err := cursor.All(ctx, &matched); err != nil {
		log.Printf("advisory bulk delete decode error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
		return
	}

	deletedIDs := make([]string, 0, len(matched))
	var orphaned []models.Attachment
	for _, a := range matched {
		deletedIDs = append(deletedIDs, a.ID.Hex())
		orphaned = append(orphaned, a.Attachments...)
	}

	if len(matched) > 0 {
		if _, err := advisoryCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}); err != nil {
			log.Printf("advisory bulk delete error: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting advisories")
			return
		}
		if err := utils.RemoveStoredFiles(orphaned); err != nil {
			log.Printf("advisory attachment cleanup: %v", err)
		}
	}

	for _, id := range deletedIDs {
		BroadcastRecordEvent("deleted", "advisory", id, c.Name, nil)
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deleted successfully",
		"deletedIds": deletedIDs,
	})
}
