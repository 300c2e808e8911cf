// models/nonconformity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResponsiblePerson is embedded by name and email rather than referenced by
// user id; ownership checks compare the email against the caller's identity.
type ResponsiblePerson struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

type NonConformity struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	NcID               string             `bson:"ncId" json:"ncId"`
	AuditID            string             `bson:"auditId" json:"auditId"`
	NcDescription      string             `bson:"ncDescription" json:"ncDescription"`
	NcClauseNo         string             `bson:"ncClauseNo" json:"ncClauseNo"`
	NcType             string             `bson:"ncType" json:"ncType"` // Minor | Major | Observation
	Department         string             `bson:"department" json:"department"`
	ResponsiblePerson  ResponsiblePerson  `bson:"responsibleperson" json:"responsibleperson"`
	NcLocation         []string           `bson:"nclocation" json:"nclocation"`
	ReportingDate      *time.Time         `bson:"reportingDate,omitempty" json:"reportingDate,omitempty"`
	DueDate            *time.Time         `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	NcCorrectiveAction string             `bson:"ncCorrectiveAction,omitempty" json:"ncCorrectiveAction,omitempty"`
	NcPreventiveAction string             `bson:"ncPreventiveAction,omitempty" json:"ncPreventiveAction,omitempty"`
	NcRootCause        string             `bson:"ncRootCause" json:"ncRootCause"`
	NcStatus           string             `bson:"ncstatus" json:"ncstatus"` // Open | In Progress | Fixed | Closed | Aborted | On-Hold
	Attachments        []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
