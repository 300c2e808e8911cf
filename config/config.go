// config/config.go
package config

import (
	"log"
	"os"
	"time"
)

var (
	Port          string
	MongoURI      string
	DBName        string
	JWTKey        []byte
	JWTExpiration time.Duration
	UploadDir     string
	EmailDomain   string

	// Seeded administrative identity, provisioned from the environment at
	// deployment time instead of living in source control.
	SuperadminName     string
	SuperadminEmail    string
	SuperadminPassword string
)

func LoadConfig() {
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "5000"
	}

	MongoURI = os.Getenv("MONGO_URI")
	if MongoURI == "" {
		MongoURI = "mongodb://localhost:27017"
	}

	DBName = os.Getenv("DB_NAME")
	if DBName == "" {
		DBName = "audittool"
	}

	JWTKey = []byte(os.Getenv("JWT_SECRET"))
	if len(JWTKey) == 0 {
		JWTKey = []byte("secret")
	}

	expireStr := os.Getenv("JWT_EXPIRE")
	dur := 24 * time.Hour
	if expireStr != "" {
		if expireStr == "7d" {
			dur = 7 * 24 * time.Hour
		} else {
			var err error
			dur, err = time.ParseDuration(expireStr)
			if err != nil {
				log.Printf("Invalid JWT_EXPIRE: %s, using 24h", expireStr)
				dur = 24 * time.Hour
			}
		}
	}
	JWTExpiration = dur

	UploadDir = os.Getenv("UPLOAD_DIR")
	if UploadDir == "" {
		UploadDir = "uploads"
	}

	EmailDomain = os.Getenv("ALLOWED_EMAIL_DOMAIN")
	if EmailDomain == "" {
		EmailDomain = "onextel.com"
	}

	SuperadminName = os.Getenv("SUPERADMIN_NAME")
	if SuperadminName == "" {
		SuperadminName = "Super Admin"
	}
	SuperadminEmail = os.Getenv("SUPERADMIN_EMAIL")
	if SuperadminEmail == "" {
		SuperadminEmail = "superadmin@" + EmailDomain
	}
	SuperadminPassword = os.Getenv("SUPERADMIN_PASSWORD")
}
