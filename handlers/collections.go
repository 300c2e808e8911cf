// handlers/collections.go
package handlers

import (
	"go.mongodb.org/mongo-driver/mongo"

	"audittool/config"
	"audittool/database"
)

var (
	userCollection        *mongo.Collection
	auditPlanCollection   *mongo.Collection
	ncCollection          *mongo.Collection
	policyCollection      *mongo.Collection
	guidelineCollection   *mongo.Collection
	templateCollection    *mongo.Collection
	certificateCollection *mongo.Collection
	advisoryCollection    *mongo.Collection
)

func InitCollections() {
	db := database.Client.Database(config.DBName)
	userCollection = db.Collection("users")
	auditPlanCollection = db.Collection("auditplans")
	ncCollection = db.Collection("nonconformities")
	policyCollection = db.Collection("policies")
	guidelineCollection = db.Collection("guidelines")
	templateCollection = db.Collection("templates")
	certificateCollection = db.Collection("certificates")
	advisoryCollection = db.Collection("advisories")
}
