package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"audittool/config"
	"audittool/handlers"
	"audittool/middleware"
)

// HTTP method constants for better maintainability
var (
	MethodsGetOnly    = []string{"GET", "OPTIONS"}
	MethodsPostOnly   = []string{"POST", "OPTIONS"}
	MethodsPutOnly    = []string{"PUT", "OPTIONS"}
	MethodsDeleteOnly = []string{"DELETE", "OPTIONS"}
)

// Route grouping constants
const (
	PathAPI    = "/api"
	PathHealth = "/health"
)

func RegisterRoutes(r *mux.Router) {
	// ====================
	// HEALTH CHECK (Public)
	// ====================
	r.HandleFunc(PathHealth, handlers.HealthCheck).Methods(MethodsGetOnly...)

	// ====================
	// AUTHENTICATION ROUTES (Public - No auth required)
	// ====================
	r.HandleFunc("/api/auth/signin", handlers.SignIn).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/auth/signup", handlers.SignUp).Methods(MethodsPostOnly...)
	r.HandleFunc("/api/auth/reset-password", handlers.ResetPassword).Methods(MethodsPostOnly...)

	// ====================
	// STATIC UPLOADS (Public)
	// ====================
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(config.UploadDir))))

	// ====================
	// PROTECTED API ROUTES (Require authentication)
	// ====================
	apiRouter := r.PathPrefix(PathAPI).Subrouter()
	apiRouter.Use(middleware.AuthMiddleware)

	// ====================
	// USER MANAGEMENT
	// ====================
	apiRouter.HandleFunc("/auth/users", handlers.ListUsers).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/auth/users/{id}", handlers.UpdateUser).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/auth/users/{id}", handlers.DeleteUser).Methods(MethodsDeleteOnly...)

	// ====================
	// AUDIT PLANS
	// ====================
	apiRouter.HandleFunc("/AuditPlan", handlers.ListAuditPlans).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/AuditPlan", handlers.CreateAuditPlan).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/AuditPlan", handlers.BulkDeleteAuditPlans).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/AuditPlan/{id}", handlers.GetAuditPlan).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/AuditPlan/{id}", handlers.UpdateAuditPlan).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/AuditPlan/{id}", handlers.DeleteAuditPlan).Methods(MethodsDeleteOnly...)
	registerAttachmentRoutes(apiRouter, "/AuditPlan", handlers.AuditPlanAttachments)

	// ====================
	// NON-CONFORMITIES
	// ====================
	apiRouter.HandleFunc("/NonConformity", handlers.ListNonConformities).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/NonConformity", handlers.CreateNonConformity).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/NonConformity", handlers.BulkDeleteNonConformities).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/NonConformity/{id}", handlers.GetNonConformity).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/NonConformity/{id}", handlers.UpdateNonConformity).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/NonConformity/{id}", handlers.DeleteNonConformity).Methods(MethodsDeleteOnly...)
	registerAttachmentRoutes(apiRouter, "/NonConformity", handlers.NonConformityAttachments)

	// ====================
	// ORGANIZATION DOCUMENTS
	// ====================
	registerDocumentRoutes(apiRouter, "/policies", handlers.PolicyType, handlers.PolicyAttachments)
	registerDocumentRoutes(apiRouter, "/guidelines", handlers.GuidelineType, handlers.GuidelineAttachments)
	registerDocumentRoutes(apiRouter, "/templates", handlers.TemplateType, handlers.TemplateAttachments)
	registerDocumentRoutes(apiRouter, "/certificates", handlers.CertificateType, handlers.CertificateAttachments)

	// ====================
	// ADVISORIES
	// ====================
	apiRouter.HandleFunc("/advisories", handlers.ListAdvisories).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/advisories", handlers.CreateAdvisory).Methods(MethodsPostOnly...)
	apiRouter.HandleFunc("/advisories", handlers.BulkDeleteAdvisories).Methods(MethodsDeleteOnly...)
	apiRouter.HandleFunc("/advisories/{id}", handlers.GetAdvisory).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/advisories/{id}", handlers.UpdateAdvisory).Methods(MethodsPutOnly...)
	apiRouter.HandleFunc("/advisories/{id}", handlers.DeleteAdvisory).Methods(MethodsDeleteOnly...)
	registerAttachmentRoutes(apiRouter, "/advisories", handlers.AdvisoryAttachments)

	// ====================
	// DASHBOARD ENDPOINTS
	// ====================
	apiRouter.HandleFunc("/dashboard/audits", handlers.AuditDashboard).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/dashboard/nonconformities", handlers.NonConformityDashboard).Methods(MethodsGetOnly...)
	apiRouter.HandleFunc("/dashboard/departments", handlers.DepartmentDashboard).Methods(MethodsGetOnly...)

	// ====================
	// RECORD EVENT STREAM (WebSocket, token via query param)
	// ====================
	apiRouter.HandleFunc("/events", handlers.HandleEvents)
}

func registerDocumentRoutes(api *mux.Router, base string, t handlers.DocType, a handlers.AttachmentTarget) {
	api.HandleFunc(base, handlers.ListDocuments(t)).Methods(MethodsGetOnly...)
	api.HandleFunc(base, handlers.CreateDocument(t)).Methods(MethodsPostOnly...)
	api.HandleFunc(base, handlers.BulkDeleteDocuments(t)).Methods(MethodsDeleteOnly...)
	api.HandleFunc(base+"/{id}", handlers.GetDocument(t)).Methods(MethodsGetOnly...)
	api.HandleFunc(base+"/{id}", handlers.UpdateDocument(t)).Methods(MethodsPutOnly...)
	api.HandleFunc(base+"/{id}", handlers.DeleteDocument(t)).Methods(MethodsDeleteOnly...)
	registerAttachmentRoutes(api, base, a)
}

func registerAttachmentRoutes(api *mux.Router, base string, t handlers.AttachmentTarget) {
	api.HandleFunc(base+"/{id}/attachments", handlers.UploadAttachments(t)).Methods(MethodsPostOnly...)
	api.HandleFunc(base+"/{id}/attachments", handlers.ListAttachments(t)).Methods(MethodsGetOnly...)
	api.HandleFunc(base+"/{id}/attachments/{fileId}", handlers.GetAttachment(t)).Methods(MethodsGetOnly...)
	api.HandleFunc(base+"/{id}/attachments/{fileId}", handlers.DeleteAttachment(t)).Methods(MethodsDeleteOnly...)
}
