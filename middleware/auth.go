package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"audittool/config"
	"audittool/database"
	"audittool/models"
	"audittool/utils"
)

type contextKey string

const (
	ContextUserID    contextKey = "userID"
	ContextUserName  contextKey = "userName"
	ContextUserEmail contextKey = "userEmail"
	ContextUserRole  contextKey = "userRole"
)

// AuthMiddleware derives the caller's identity from a verified bearer token.
// Role and email are never read from client-supplied request fields.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the event stream authenticates in its own handler (the token
		// arrives as a query parameter there); every other route requires a
		// bearer token regardless of upgrade headers.
		if r.URL.Path == "/api/events" && r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateJWT(tokenString)
		if err != nil || claims == nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user id in token")
			return
		}

		var user models.User
		err = database.Client.Database(config.DBName).Collection("users").
			FindOne(r.Context(), bson.M{"_id": userID}).Decode(&user)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, user.ID.Hex())
		ctx = context.WithValue(ctx, ContextUserName, user.Name)
		ctx = context.WithValue(ctx, ContextUserEmail, user.Email)
		ctx = context.WithValue(ctx, ContextUserRole, user.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
