// models/attachment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment is file metadata owned by a single parent record. The stored
// filename is collision-resistant; the original name is kept for display.
type Attachment struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"originalname" json:"originalname"`
	MimeType     string             `bson:"mimetype" json:"mimetype"`
	Size         int64              `bson:"size" json:"size"`
	Path         string             `bson:"path" json:"path"`
	UploadedAt   time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
