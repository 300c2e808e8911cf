package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittool/config"
	"audittool/middleware"
	"audittool/models"
)

func TestMain(m *testing.M) {
	config.EmailDomain = "onextel.com"
	config.UploadDir = os.TempDir()
	config.JWTKey = []byte("handlers-test-key")
	config.JWTExpiration = time.Hour
	os.Exit(m.Run())
}

// withIdentity stamps an authenticated identity onto the request context the
// way the auth middleware does after token verification.
func withIdentity(r *http.Request, role string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextUserID, "65f000000000000000000001")
	ctx = context.WithValue(ctx, middleware.ContextUserName, "Test User")
	ctx = context.WithValue(ctx, middleware.ContextUserEmail, "test.user@onextel.com")
	ctx = context.WithValue(ctx, middleware.ContextUserRole, role)
	return r.WithContext(ctx)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCaller_MissingIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/AuditPlan", nil)
	_, ok := caller(req)
	assert.False(t, ok)
}

func TestCaller_RoundTrip(t *testing.T) {
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/AuditPlan", nil), models.RoleAuditor)
	c, ok := caller(req)
	require.True(t, ok)
	assert.Equal(t, models.RoleAuditor, c.Role)
	assert.Equal(t, "test.user@onextel.com", c.Email)
}

func TestRoleAllowed(t *testing.T) {
	assert.True(t, roleAllowed(models.RoleAdmin, auditPlanWriteRoles))
	assert.True(t, roleAllowed(models.RoleAuditor, auditPlanWriteRoles))
	assert.False(t, roleAllowed(models.RoleUser, auditPlanWriteRoles))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-03-15")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.Year())

	d, err = parseDate("2024-03-15T10:30:00Z")
	require.NoError(t, err)
	require.NotNil(t, d)

	d, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = parseDate("15/03/2024")
	assert.Error(t, err)
}

func TestMissingAuditPlanFields_ListsAll(t *testing.T) {
	missing := missingAuditPlanFields(auditPlanRequest{Status: "Planned"})
	assert.Equal(t, []string{"auditId", "auditType", "plannedDate"}, missing)

	missing = missingAuditPlanFields(auditPlanRequest{
		AuditID:     "AUD-1",
		AuditType:   "internal",
		Status:      "Planned",
		PlannedDate: "2024-01-01",
	})
	assert.Empty(t, missing)
}

func TestCreateAuditPlan_RequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/AuditPlan", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	CreateAuditPlan(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAuditPlan_RejectsBaseUserRole(t *testing.T) {
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/AuditPlan", strings.NewReader("{}")), models.RoleUser)
	rec := httptest.NewRecorder()

	CreateAuditPlan(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAuditPlan_ListsEveryMissingField(t *testing.T) {
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/AuditPlan", strings.NewReader("{}")), models.RoleAdmin)
	rec := httptest.NewRecorder()

	CreateAuditPlan(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	msg := errorBody(t, rec)
	assert.Contains(t, msg, "auditId")
	assert.Contains(t, msg, "auditType")
	assert.Contains(t, msg, "status")
	assert.Contains(t, msg, "plannedDate")
}

func TestGenerateNcID_Format(t *testing.T) {
	id := generateNcID()
	assert.Regexp(t, regexp.MustCompile(`^NC-\d{8}-\d{4}$`), id)
}

// multipartBody builds a multipart form from plain fields.
func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestMissingNCFields_ListsAll(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{
		"ncDescription": "broken process",
		"ncType":        "Minor",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/NonConformity", body)
	req.Header.Set("Content-Type", contentType)

	form, err := parseNCForm(req)
	require.NoError(t, err)

	missing := missingNCFields(form)
	assert.Contains(t, missing, "auditId")
	assert.Contains(t, missing, "dueDate")
	assert.Contains(t, missing, "department")
	assert.Contains(t, missing, "responsibleperson")
	assert.Contains(t, missing, "nclocation")
	assert.Contains(t, missing, "ncRootCause")
	assert.Contains(t, missing, "ncstatus")
	assert.NotContains(t, missing, "ncDescription")
	assert.NotContains(t, missing, "ncType")
}

func TestParseNCForm_ResponsiblePersonAndLocations(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{
		"auditId":           "AUD-1",
		"responsibleperson": `{"name":"Asha Rao","email":"asha.rao@onextel.com"}`,
		"nclocation":        `["Mumbai","Pune"]`,
		"reportingDate":     "2024-02-01",
		"dueDate":           "2024-03-01",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/NonConformity", body)
	req.Header.Set("Content-Type", contentType)

	form, err := parseNCForm(req)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", form.ResponsiblePerson.Name)
	assert.Equal(t, "asha.rao@onextel.com", form.ResponsiblePerson.Email)
	assert.Equal(t, []string{"Mumbai", "Pune"}, form.NcLocation)
	require.NotNil(t, form.ReportingDate)
	require.NotNil(t, form.DueDate)
	assert.True(t, form.ReportingDate.Before(*form.DueDate))
}

func TestParseNCForm_RejectsMalformedResponsiblePerson(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{
		"responsibleperson": "not-json",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/NonConformity", body)
	req.Header.Set("Content-Type", contentType)

	_, err := parseNCForm(req)
	assert.Error(t, err)
}

func TestMissingDocumentFields_ListsAll(t *testing.T) {
	missing := missingDocumentFields(&documentForm{DocumentName: "Access Policy"})
	assert.Equal(t, []string{"documentId", "versionNumber", "releaseDate"}, missing)
}

func TestCreateDocument_RoleMatrixPerType(t *testing.T) {
	cases := []struct {
		docType  DocType
		role     string
		expected int
	}{
		{PolicyType, models.RoleSuperadmin, http.StatusBadRequest}, // passes role gate, fails validation
		{PolicyType, models.RoleAuditor, http.StatusForbidden},
		{GuidelineType, models.RoleSuperadmin, http.StatusForbidden}, // guidelines are admin-only
		{GuidelineType, models.RoleAdmin, http.StatusBadRequest},
		{TemplateType, models.RoleUser, http.StatusForbidden},
		{CertificateType, models.RoleAuditor, http.StatusForbidden},
	}

	for _, tc := range cases {
		body, contentType := multipartBody(t, map[string]string{})
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/documents", body), tc.role)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		CreateDocument(tc.docType)(rec, req)
		assert.Equal(t, tc.expected, rec.Code, "type=%s role=%s", tc.docType.name, tc.role)
	}
}

func TestCreateAdvisory_RequiresPrivilegedRole(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{})
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/advisories", body), models.RoleAuditor)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	CreateAdvisory(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMissingAdvisoryFields(t *testing.T) {
	missing := missingAdvisoryFields(&advisoryForm{AdvisoryTitle: "Patch now"})
	assert.Equal(t, []string{"advisoryId", "Date"}, missing)
}

func TestUploadAttachments_RoleGate(t *testing.T) {
	body, contentType := multipartBody(t, map[string]string{})
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/AuditPlan/x/attachments", body), models.RoleUser)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	UploadAttachments(AuditPlanAttachments)(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReadHandlers_RequireAuthentication(t *testing.T) {
	// Read endpoints must reject requests whose context carries no verified
	// identity, even if something upstream let the request through.
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"ListAuditPlans", ListAuditPlans},
		{"GetAuditPlan", GetAuditPlan},
		{"GetNonConformity", GetNonConformity},
		{"ListNonConformities", ListNonConformities},
		{"ListDocuments", ListDocuments(PolicyType)},
		{"GetDocument", GetDocument(PolicyType)},
		{"ListAdvisories", ListAdvisories},
		{"GetAdvisory", GetAdvisory},
		{"ListAttachments", ListAttachments(AuditPlanAttachments)},
		{"GetAttachment", GetAttachment(AuditPlanAttachments)},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
		req.Header.Set("Upgrade", "websocket")
		rec := httptest.NewRecorder()

		tc.handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.name)
	}
}

func TestUpdateUser_CannotGrantSuperadminRole(t *testing.T) {
	body := strings.NewReader(`{"name":"Asha Rao","email":"asha.rao@onextel.com","role":"superadmin"}`)
	req := withIdentity(httptest.NewRequest(http.MethodPut, "/api/auth/users/65f000000000000000000002", body), models.RoleSuperadmin)
	req = mux.SetURLVars(req, map[string]string{"id": "65f000000000000000000002"})
	rec := httptest.NewRecorder()

	UpdateUser(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, errorBody(t, rec), "superadmin role")
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, models.RoleUser, normalizeRole(""))
	assert.Equal(t, models.RoleAdmin, normalizeRole(" Admin "))
	assert.Equal(t, models.RoleAuditor, normalizeRole("AUDITOR"))
}

func TestAllowedEmail(t *testing.T) {
	assert.True(t, allowedEmail("asha.rao@onextel.com"))
	assert.True(t, allowedEmail("Asha.Rao@Onextel.COM"))
	assert.False(t, allowedEmail("asha.rao@gmail.com"))
	assert.False(t, allowedEmail("not-an-email"))
}
