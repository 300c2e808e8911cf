// handlers/attachment_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"audittool/config"
	"audittool/models"
	"audittool/utils"
)

// maxUploadBytes bounds a single multipart request.
const maxUploadBytes = 64 << 20

// AttachmentTarget wires the generic attachment sub-routes to one record
// collection. The collection getter defers resolution until after
// InitCollections has run.
type AttachmentTarget struct {
	entity      string
	collection  func() *mongo.Collection
	writeRoles  []string
	allowedExts []string
}

type attachmentsOnly struct {
	Attachments []models.Attachment `bson:"attachments"`
}

// One target per record collection; write roles match each collection's own
// write matrix.
var (
	AuditPlanAttachments = AttachmentTarget{
		entity:      "auditplan",
		collection:  func() *mongo.Collection { return auditPlanCollection },
		writeRoles:  []string{models.RoleAdmin, models.RoleAuditor, models.RoleSuperadmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	NonConformityAttachments = AttachmentTarget{
		entity:      "nonconformity",
		collection:  func() *mongo.Collection { return ncCollection },
		writeRoles:  []string{models.RoleAdmin, models.RoleAuditor, models.RoleSuperadmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	PolicyAttachments = AttachmentTarget{
		entity:      "policy",
		collection:  func() *mongo.Collection { return policyCollection },
		writeRoles:  []string{models.RoleAdmin, models.RoleSuperadmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	GuidelineAttachments = AttachmentTarget{
		entity:      "guideline",
		collection:  func() *mongo.Collection { return guidelineCollection },
		writeRoles:  []string{models.RoleAdmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	TemplateAttachments = AttachmentTarget{
		entity:      "template",
		collection:  func() *mongo.Collection { return templateCollection },
		writeRoles:  []string{models.RoleAdmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	CertificateAttachments = AttachmentTarget{
		entity:      "certificate",
		collection:  func() *mongo.Collection { return certificateCollection },
		writeRoles:  []string{models.RoleAdmin},
		allowedExts: utils.DefaultAllowedExtensions,
	}
	AdvisoryAttachments = AttachmentTarget{
		entity:      "advisory",
		collection:  func() *mongo.Collection { return advisoryCollection },
		writeRoles:  []string{models.RoleAdmin, models.RoleSuperadmin},
		allowedExts: utils.AdvisoryAllowedExtensions,
	}
)

// UploadAttachments appends uploaded files to an existing record. The batch
// is all-or-nothing: one disallowed extension rejects every file.
func UploadAttachments(t AttachmentTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to upload attachments")
			return
		}

		recordID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid record id")
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid multipart payload")
			return
		}
		files := r.MultipartForm.File["attachments"]
		if len(files) == 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "no files provided")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		count, err := t.collection().CountDocuments(ctx, bson.M{"_id": recordID})
		if err != nil {
			log.Printf("%s attachment lookup error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}
		if count == 0 {
			utils.RespondWithError(w, http.StatusNotFound, t.entity+" not found")
			return
		}

		attachments, err := utils.SaveUploadedFiles(files, config.UploadDir, t.allowedExts)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		_, err = t.collection().UpdateOne(ctx,
			bson.M{"_id": recordID},
			bson.M{
				"$push": bson.M{"attachments": bson.M{"$each": attachments}},
				"$set":  bson.M{"updatedAt": time.Now().UTC()},
			})
		if err != nil {
			// The files are on disk but unreferenced; remove them so the
			// failed request leaves nothing behind.
			_ = utils.RemoveStoredFiles(attachments)
			log.Printf("%s attachment push error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to record attachments")
			return
		}

		BroadcastRecordEvent("updated", t.entity, recordID.Hex(), c.Name, nil)
		utils.RespondWithJSON(w, http.StatusCreated, attachments)
	}
}

// ListAttachments returns a record's attachment metadata with download URLs.
func ListAttachments(t AttachmentTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := caller(r); !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		recordID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid record id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var record attachmentsOnly
		err = t.collection().FindOne(ctx, bson.M{"_id": recordID}).Decode(&record)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.entity+" not found")
				return
			}
			log.Printf("%s attachments find error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		out := make([]map[string]interface{}, 0, len(record.Attachments))
		for _, a := range record.Attachments {
			out = append(out, map[string]interface{}{
				"_id":         a.ID.Hex(),
				"name":        a.OriginalName,
				"filename":    a.Filename,
				"mimetype":    a.MimeType,
				"size":        a.Size,
				"uploadedAt":  a.UploadedAt,
				"downloadUrl": "/uploads/" + a.Filename,
			})
		}
		utils.RespondWithJSON(w, http.StatusOK, out)
	}
}

// GetAttachment streams one stored file inline.
func GetAttachment(t AttachmentTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := caller(r); !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		vars := mux.Vars(r)
		recordID, err := primitive.ObjectIDFromHex(vars["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid record id")
			return
		}
		fileID, err := primitive.ObjectIDFromHex(vars["fileId"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid file id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var record attachmentsOnly
		err = t.collection().FindOne(ctx, bson.M{"_id": recordID}).Decode(&record)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.entity+" not found")
				return
			}
			log.Printf("%s attachment find error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		for _, a := range record.Attachments {
			if a.ID == fileID {
				f, err := os.Open(a.Path)
				if err != nil {
					utils.RespondWithError(w, http.StatusNotFound, "stored file missing")
					return
				}
				defer f.Close()

				if a.MimeType != "" {
					w.Header().Set("Content-Type", a.MimeType)
				}
				w.Header().Set("Content-Disposition", `inline; filename="`+a.OriginalName+`"`)
				http.ServeContent(w, r, a.OriginalName, a.UploadedAt, f)
				return
			}
		}
		utils.RespondWithError(w, http.StatusNotFound, "attachment not found")
	}
}

// DeleteAttachment removes one file's metadata from its record and unlinks
// the stored file best-effort.
func DeleteAttachment(t AttachmentTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !roleAllowed(c.Role, t.writeRoles) {
			utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to delete attachments")
			return
		}

		vars := mux.Vars(r)
		recordID, err := primitive.ObjectIDFromHex(vars["id"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid record id")
			return
		}
		fileID, err := primitive.ObjectIDFromHex(vars["fileId"])
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid file id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		var record attachmentsOnly
		err = t.collection().FindOne(ctx, bson.M{"_id": recordID}).Decode(&record)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithError(w, http.StatusNotFound, t.entity+" not found")
				return
			}
			log.Printf("%s attachment find error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "database query failed")
			return
		}

		var target *models.Attachment
		for i := range record.Attachments {
			if record.Attachments[i].ID == fileID {
				target = &record.Attachments[i]
				break
			}
		}
		if target == nil {
			utils.RespondWithError(w, http.StatusNotFound, "attachment not found")
			return
		}

		_, err = t.collection().UpdateOne(ctx,
			bson.M{"_id": recordID},
			bson.M{
				"$pull": bson.M{"attachments": bson.M{"_id": fileID}},
				"$set":  bson.M{"updatedAt": time.Now().UTC()},
			})
		if err != nil {
			log.Printf("%s attachment pull error: %v", t.entity, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "failed to delete attachment")
			return
		}

		if err := utils.RemoveStoredFiles([]models.Attachment{*target}); err != nil {
			log.Printf("failed to unlink %s: %v", target.Path, err)
		}

		BroadcastRecordEvent("updated", t.entity, recordID.Hex(), c.Name, nil)
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Attachment deleted"})
	}
}
