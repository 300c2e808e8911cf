// handlers/context.go
package handlers

import (
	"net/http"

	"audittool/middleware"
)

// callerIdentity is the authenticated identity placed on the request context
// by the auth middleware. Handlers never read role or email from
// client-supplied fields.
type callerIdentity struct {
	ID    string
	Name  string
	Email string
	Role  string
}

func caller(r *http.Request) (callerIdentity, bool) {
	id, _ := r.Context().Value(middleware.ContextUserID).(string)
	name, _ := r.Context().Value(middleware.ContextUserName).(string)
	email, _ := r.Context().Value(middleware.ContextUserEmail).(string)
	role, _ := r.Context().Value(middleware.ContextUserRole).(string)
	if id == "" || role == "" {
		return callerIdentity{}, false
	}
	return callerIdentity{ID: id, Name: name, Email: email, Role: role}, true
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
