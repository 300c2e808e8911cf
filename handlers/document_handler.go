// handlers/document_handler.go
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

	"audittool/config"
	"audittool/models"
	"audittool/reporting"
	"audittool/utils"
)

// DocType describes one organization document collection. The four document
// collections share a wire shape and differ only in name, backing collection
// and write-role matrix, so one handler set serves them all.
type DocType struct {
	name       string // singular, used in messages and events
	collection func() *mongo.Collection
	writeRoles []string
}

// Write-role matrices mirror long-standing access rules: policies accept
// both admin and superadmin, the other three are admin-only.
var (
	PolicyType = DocType{
		name:       "policy",
		collection: func() *mongo.Collection { return policyCollection },
		writeRoles: []string{models.RoleAdmin, models.RoleSuperadmin},
	}
	GuidelineType = DocType{
		name:       "guideline",
		collection: func() *mongo.Collection { return guidelineCollection },
		writeRoles: []string{models.RoleAdmin},
	}
	TemplateType = DocType{
		name:       "template",
		collection: func() *mongo.Collection { return templateCollection },
		writeRoles: []string{models.RoleAdmin},
	}
	CertificateType = DocType{
		name:       "certificate",
		collection: func() *mongo.Collection { return certificateCollection },
		writeRoles: []string{models.RoleAdmin},
	}
)

type documentForm struct {
	DocumentID         string
	DocumentName       string
	Description        string
	VersionNumber      string
	ReleaseDate        *time.Time
	ApplicableStandard []string
}

func parseDocumentForm(r *http.Request) (*documentForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart payload")
	}

	form := &documentForm{
		DocumentID:    strings.TrimSpace(r.FormValue("documentId")),
		DocumentName:  strings.TrimSpace(r.FormValue("documentName")),
		Description:   r.FormValue("description"),
		VersionNumber: strings.TrimSpace(r.FormValue("versionNumber")),
	}

	standards := r.Form["applicableStandard"]
	if len(standards) == 1 && strings.HasPrefix(strings.TrimSpace(standards[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(standards[0]), &parsed); err == nil {
			standards = parsed
		}
	}
	for _, s := range standards {
		if s = strings.TrimSpace(s); s != "" {
			form.ApplicableStandard = append(form.ApplicableStandard, s)
		}
	}

	var err error
	if form.ReleaseDate, err = parseDate(r.FormValue("releaseDate")); err != nil {
		return nil, fmt.Errorf("releaseDate: %v", err)
	}
	return form, nil
}

func missingDocumentFields(f *documentForm) []string {
	var missing []string
	if f.DocumentID == "" {
		missing = append(missing, "documentId")
	}
	if f.DocumentName == "" {
		missing = append(missing, "documentName")
	}
	if f.VersionNumber == "" {
		missing = append(missing, "versionNumber")
	}
	if f.ReleaseDate == nil {
		missing = append(missing, "releaseDate")
	}
	return missing
}

// CreateDocument stores a new document record with its uploaded files. The
// human documentId must be unique within the collection.
func CreateDocument(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to create "+t.name)
			return
		}

		form, err := parseDocumentForm(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if missing := missingDocumentFields(form); len(missing) > 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		count, err := t.collection().CountDocuments(ctx, bson.M{"documentId": form.DocumentID})
		if err != nil {
			log.Printf("%s lookup error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}
		if count > 0 {
			utils.RespondWithError(w, http.StatusConflict, t.name+" with this documentId already exists")
			return
		}

		attachments := []models.Attachment{}
		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["attachments"]; len(files) > 0 {
				attachments, err = utils.SaveUploadedFiles(files, config.UploadDir, utils.DefaultAllowedExtensions)
				if err != nil {
					utils.RespondWithError(w, http.StatusBadRequest, err.Error())
					return
				}
			}
		}

		now := time.Now().UTC()
		doc := models.Document{
			ID:                 primitive.NewObjectID(),
			DocumentID:         form.DocumentID,
			DocumentName:       form.DocumentName,
			Description:        form.Description,
			VersionNumber:      form.VersionNumber,
			ReleaseDate:        form.ReleaseDate,
			ApplicableStandard: form.ApplicableStandard,
			Attachments:        attachments,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if _, err := t.collection().InsertOne(ctx, doc); err != nil {
			_ = utils.RemoveStoredFiles(attachments)
			log.Printf("insert %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Error saving "+t.name)
			return
		}

		BroadcastRecordEvent("created", t.name, doc.ID.Hex(), c.Name, doc)
		utils.RespondWithJSON(w, http.StatusCreated, doc)
	}
}

// ListDocuments returns the collection newest-first, optionally filtered by
// the q= free-text query.
func ListDocuments(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := caller(r); !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := t.collection().Find(ctx, bson.M{}, opts)
		if err != nil {
			log.Printf("%s Find error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}
		defer cursor.Close(ctx)

		var docs []models.Document
		if err := cursor.All(ctx, &docs); err != nil {
			log.Printf("%s decode error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to decode documents")
			return
		}

		if q := r.URL.Query().Get("q"); q != "" {
			filtered := docs[:0]
			for _, d := range docs {
				if reporting.Matches(d, q) {
					filtered = append(filtered, d)
				}
			}
			docs = filtered
		}
		if docs == nil {
			docs = []models.Document{}
		}

		utils.RespondWithJSON(w, http.StatusOK, docs)
	}
}

func GetDocument(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := caller(r); !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		docID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid document id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var doc models.Document
		err = t.collection().FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.name+" not found")
				return
			}
			log.Printf("find %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, doc)
	}
}

// UpdateDocument rewrites the editable fields. The documentId is immutable
// once assigned; uploaded files replace the attachment set for this request.
func UpdateDocument(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to update "+t.name)
			return
		}

		docID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid document id")
			return
		}

		form, err := parseDocumentForm(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if missing := missingDocumentFields(form); len(missing) > 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		var existing models.Document
		err = t.collection().FindOne(ctx, bson.M{"_id": docID}).Decode(&existing)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.name+" not found")
				return
			}
			log.Printf("find %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		if form.DocumentID != existing.DocumentID {
			utils.RespondWithError(w, http.StatusBadRequest, "documentId cannot be changed")
			return
		}

		update := bson.M{
			"documentName":       form.DocumentName,
			"description":        form.Description,
			"versionNumber":      form.VersionNumber,
			"releaseDate":        form.ReleaseDate,
			"applicableStandard": form.ApplicableStandard,
			"updatedAt":          time.Now().UTC(),
		}

		var replaced []models.Attachment
		if r.MultipartForm != nil {
			if files := r.MultipartForm.File["attachments"]; len(files) > 0 {
				attachments, err := utils.SaveUploadedFiles(files, config.UploadDir, utils.DefaultAllowedExtensions)
				if err != nil {
					utils.RespondWithError(w, http.StatusBadRequest, err.Error())
					return
				}
				update["attachments"] = attachments
				replaced = existing.Attachments
			}
		}

		if _, err := t.collection().UpdateOne(ctx, bson.M{"_id": docID}, bson.M{"$set": update}); err != nil {
			log.Printf("update %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to update "+t.name)
			return
		}

		if len(replaced) > 0 {
			if err := utils.RemoveStoredFiles(replaced); err != nil {
				log.Printf("%s attachment cleanup: %v", t.name, err)
			}
		}

		var updated models.Document
		if err := t.collection().FindOne(ctx, bson.M{"_id": docID}).Decode(&updated); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to fetch updated "+t.name)
			return
		}

		BroadcastRecordEvent("updated", t.name, docID.Hex(), c.Name, updated)
		utils.RespondWithJSON(w, http.StatusOK, updated)
	}
}

func DeleteDocument(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete "+t.name)
			return
		}

		docID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid document id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var existing models.Document
		err = t.collection().FindOne(ctx, bson.M{"_id": docID}).Decode(&existing)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.name+" not found")
				return
			}
			log.Printf("find %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		if _, err := t.collection().DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
			log.Printf("delete %s error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting "+t.name)
			return
		}

		if err := utils.RemoveStoredFiles(existing.Attachments); err != nil {
			log.Printf("%s attachment cleanup: %v", t.name, err)
		}

		BroadcastRecordEvent("deleted", t.name, docID.Hex(), c.Name, nil)
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
	}
}

// BulkDeleteDocuments removes every matching id and reports the subset
// actually deleted; ids not on file are skipped.
func BulkDeleteDocuments(t DocType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete "+t.name)
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

		cursor, err := t.collection().Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
		if err != nil {
			log.Printf("%s bulk delete find error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}
		var matched []models.Document
		if err := cursor.All(ctx, &matched); err != nil {
			log.Printf("%s bulk delete decode error: %v", t.name, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		deletedIDs := make([]string, 0, len(matched))
		var orphaned []models.Attachment
		for _, d := range matched {
			deletedIDs = append(deletedIDs, d.ID.Hex())
			orphaned = append(orphaned, d.Attachments...)
		}

		if len(matched) > 0 {
			if _, err := t.collection().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}); err != nil {
				log.Printf("%s bulk delete error: %v", t.name, err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting documents")
				return
			}
			if err := utils.RemoveStoredFiles(orphaned); err != nil {
				log.Printf("%s attachment cleanup: %v", t.name, err)
			}
		}

		for _, id := range deletedIDs {
			BroadcastRecordEvent("deleted", t.name, id, c.Name, nil)
		}

		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"message":    "Deleted successfully",
			"deletedIds": deletedIDs,
		})
	}
}
