// models/document.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document backs the policy, guideline, template and certificate
// collections, which share one wire shape. DocumentID is a human identifier,
// unique within its collection and immutable after creation.
type Document struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	DocumentID         string             `bson:"documentId" json:"documentId"`
	DocumentName       string             `bson:"documentName" json:"documentName"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	VersionNumber      string             `bson:"versionNumber" json:"versionNumber"`
	ReleaseDate        *time.Time         `bson:"releaseDate,omitempty" json:"releaseDate,omitempty"`
	ApplicableStandard []string           `bson:"applicableStandard,omitempty" json:"applicableStandard,omitempty"`
	Attachments        []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Advisory keeps its historical field names on the wire.
type Advisory struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	AdvisoryID    string             `bson:"advisoryId" json:"advisoryId"`
	AdvisoryTitle string             `bson:"advisorytitle" json:"advisorytitle"`
	Date          *time.Time         `bson:"Date,omitempty" json:"Date,omitempty"`
	Attachments   []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
