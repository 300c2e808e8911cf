// models/auditplan.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit plan lifecycle statuses. Only Planned audits may be deleted.
const (
	AuditStatusPlanned   = "Planned"
	AuditStatusExecuted  = "Executed"
	AuditStatusCompleted = "Completed"
)

type AuditPlan struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	AuditID            string             `bson:"auditId" json:"auditId"`
	AuditType          string             `bson:"auditType" json:"auditType"` // internal | external
	Status             string             `bson:"status" json:"status"`
	PlannedDate        *time.Time         `bson:"plannedDate,omitempty" json:"plannedDate,omitempty"`
	ActualDate         *time.Time         `bson:"actualdate,omitempty" json:"actualdate,omitempty"`
	Department         string             `bson:"department,omitempty" json:"department,omitempty"`
	Auditor            string             `bson:"auditor,omitempty" json:"auditor,omitempty"`
	ApplicableStandard []string           `bson:"applicableStandard,omitempty" json:"applicableStandard,omitempty"`
	Remarks            string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Attachments        []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
