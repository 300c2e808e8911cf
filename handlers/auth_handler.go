// handlers/auth_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"audittool/config"
	"audittool/models"
	"audittool/utils"
)

var emailLocalPart = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+$`)

// allowedEmail restricts sign-up and sign-in to the configured
// organizational domain.
func allowedEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return false
	}
	if !strings.EqualFold(email[at+1:], config.EmailDomain) {
		return false
	}
	return emailLocalPart.MatchString(email[:at])
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case models.RoleSuperadmin, models.RoleAdmin, models.RoleAuditor, models.RoleUser:
		return role
	default:
		return models.RoleUser
	}
}

// SeedSuperadmin provisions the reserved administrative account at startup
// when SUPERADMIN_PASSWORD is configured and the account does not exist yet.
func SeedSuperadmin() {
	if config.SuperadminPassword == "" {
		log.Println("SUPERADMIN_PASSWORD not set, skipping superadmin seeding")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := userCollection.CountDocuments(ctx, bson.M{"email": config.SuperadminEmail})
	if err != nil {
		log.Printf("superadmin seed check failed: %v", err)
		return
	}
	if count > 0 {
		return
	}

	hash, err := utils.HashPassword(config.SuperadminPassword)
	if err != nil {
		log.Printf("superadmin seed hash failed: %v", err)
		return
	}

	now := time.Now().UTC()
	_, err = userCollection.InsertOne(ctx, models.User{
		ID:           primitive.NewObjectID(),
		Name:         config.SuperadminName,
		Email:        config.SuperadminEmail,
		PasswordHash: hash,
		Role:         models.RoleSuperadmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		log.Printf("superadmin seed insert failed: %v", err)
		return
	}
	log.Printf("Seeded superadmin account %s", config.SuperadminEmail)
}

// SignIn authenticates a user and issues a session token. The seeded
// superadmin signs in through the same bcrypt path as everyone else.
func SignIn(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if creds.Email == "" || creds.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}
	if !allowedEmail(creds.Email) {
		utils.RespondWithError(w, http.StatusBadRequest, "Only @"+config.EmailDomain+" emails are allowed.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	err := userCollection.FindOne(ctx, bson.M{"email": creds.Email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "User not found.")
			return
		}
		log.Printf("signin find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Authentication service unavailable")
		return
	}

	if !utils.CheckPasswordHash(creds.Password, user.PasswordHash) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid password.")
		return
	}

	token, err := utils.GenerateJWT(user.ID.Hex(), user.Name, user.Email, user.Role)
	if err != nil {
		log.Printf("JWT generation error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Sign-in successful.",
		"token":   token,
		"id":      user.ID.Hex(),
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
	})
}

// SignUp registers a new domain-restricted user.
func SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "All fields required")
		return
	}
	if !allowedEmail(req.Email) {
		utils.RespondWithError(w, http.StatusBadRequest, "Only @"+config.EmailDomain+" emails are allowed.")
		return
	}

	role := normalizeRole(req.Role)
	if role == models.RoleSuperadmin || req.Email == config.SuperadminEmail {
		utils.RespondWithError(w, http.StatusForbidden, "The superadmin identity cannot be created through sign-up.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	count, err := userCollection.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		log.Printf("signup lookup error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database error")
		return
	}
	if count > 0 {
		utils.RespondWithError(w, http.StatusConflict, "Email already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := userCollection.InsertOne(ctx, user); err != nil {
		log.Printf("signup insert error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID.Hex(),
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}

// ResetPassword verifies the old password and stores a new hash. The seeded
// superadmin is rejected outright.
func ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email              string `json:"email"`
		OldPassword        string `json:"oldPassword"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.OldPassword == "" || req.NewPassword == "" || req.ConfirmNewPassword == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "All fields are required.")
		return
	}
	if req.NewPassword != req.ConfirmNewPassword {
		utils.RespondWithError(w, http.StatusBadRequest, "New passwords do not match.")
		return
	}
	if req.Email == config.SuperadminEmail {
		utils.RespondWithError(w, http.StatusForbidden, "Superadmin password cannot be reset.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var user models.User
	err := userCollection.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "User not found.")
			return
		}
		log.Printf("reset password find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "database error")
		return
	}

	if !utils.CheckPasswordHash(req.OldPassword, user.PasswordHash) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Old password is incorrect.")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	_, err = userCollection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"passwordHash": hash,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		log.Printf("reset password update error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful."})
}

// ListUsers returns every user, password hashes excluded by the model's
// json tag.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !roleAllowed(c.Role, []string{models.RoleAdmin, models.RoleSuperadmin}) {
		utils.RespondWithError(w, http.StatusForbidden, "insufficient permissions to list users")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	cursor, err := userCollection.Find(ctx, bson.M{})
	if err != nil {
		log.Printf("list users error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		log.Printf("decode users error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []models.User{}
	}

	utils.RespondWithJSON(w, http.StatusOK, users)
}

// UpdateUser edits a user's name, email and role. The seeded superadmin
// account is immutable through this endpoint.
func UpdateUser(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if c.Role != models.RoleSuperadmin {
		utils.RespondWithError(w, http.StatusForbidden, "only superadmin may edit users")
		return
	}

	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !allowedEmail(req.Email) {
		utils.RespondWithError(w, http.StatusBadRequest, "Only @"+config.EmailDomain+" emails are allowed.")
		return
	}
	// The seeded account is the only superadmin; the role cannot be granted.
	if strings.EqualFold(strings.TrimSpace(req.Role), models.RoleSuperadmin) {
		utils.RespondWithError(w, http.StatusForbidden, "The superadmin role cannot be assigned.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var existing models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("update user find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}
	if existing.Email == config.SuperadminEmail {
		utils.RespondWithError(w, http.StatusForbidden, "The superadmin account cannot be edited.")
		return
	}

	update := bson.M{
		"name":      strings.TrimSpace(req.Name),
		"email":     req.Email,
		"role":      normalizeRole(req.Role),
		"updatedAt": time.Now().UTC(),
	}
	if _, err := userCollection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": update}); err != nil {
		log.Printf("update user error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	var updated models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&updated); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch updated user")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updated)
}

// DeleteUser removes a user. The seeded superadmin account is undeletable.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if c.Role != models.RoleSuperadmin {
		utils.RespondWithError(w, http.StatusForbidden, "only superadmin may delete users")
		return
	}

	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var existing models.User
	if err := userCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("delete user find error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if existing.Email == config.SuperadminEmail {
		utils.RespondWithError(w, http.StatusForbidden, "The superadmin account cannot be deleted.")
		return
	}

	if _, err := userCollection.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		log.Printf("delete user error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
