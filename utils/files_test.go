package utils

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed("report.pdf", DefaultAllowedExtensions))
	assert.True(t, ExtensionAllowed("photo.JPG", DefaultAllowedExtensions))
	assert.False(t, ExtensionAllowed("script.exe", DefaultAllowedExtensions))
	assert.False(t, ExtensionAllowed("noextension", DefaultAllowedExtensions))

	// Advisories reject the spreadsheet formats outside their narrower list.
	assert.False(t, ExtensionAllowed("sheet.xlsx", AdvisoryAllowedExtensions))
	assert.True(t, ExtensionAllowed("sheet.xls", AdvisoryAllowedExtensions))
}

func TestStorageFilename_KeepsExtensionAndVaries(t *testing.T) {
	a := StorageFilename("Quarterly Report.PDF")
	b := StorageFilename("Quarterly Report.PDF")

	assert.True(t, strings.HasSuffix(a, ".pdf"))
	assert.NotEqual(t, a, b)
}

// multipartRequest builds a request carrying the given files under the
// attachments field.
func multipartRequest(t *testing.T, filenames ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile("attachments", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("file content for " + name))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSaveUploadedFiles_StoresMetadata(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, "a.pdf", "b.png")
	require.NoError(t, req.ParseMultipartForm(1<<20))

	attachments, err := SaveUploadedFiles(req.MultipartForm.File["attachments"], dir, DefaultAllowedExtensions)
	require.NoError(t, err)
	require.Len(t, attachments, 2)

	assert.Equal(t, "a.pdf", attachments[0].OriginalName)
	assert.NotEmpty(t, attachments[0].Filename)
	assert.Greater(t, attachments[0].Size, int64(0))
	assert.False(t, attachments[0].ID.IsZero())

	for _, a := range attachments {
		_, err := os.Stat(a.Path)
		assert.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(a.Path))
	}
}

func TestSaveUploadedFiles_RejectsWholeBatchOnBadExtension(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, "a.pdf", "bad.exe")
	require.NoError(t, req.ParseMultipartForm(1<<20))

	attachments, err := SaveUploadedFiles(req.MultipartForm.File["attachments"], dir, DefaultAllowedExtensions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.exe")
	assert.Nil(t, attachments)

	// Nothing written, including the valid file.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUploadedFiles_CleansUpOnMidBatchFailure(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, "a.pdf")
	require.NoError(t, req.ParseMultipartForm(1<<20))

	// A header with no backing content; Open fails after the first file has
	// already been written.
	broken := &multipart.FileHeader{Filename: "b.pdf"}
	files := append(req.MultipartForm.File["attachments"], broken)

	attachments, err := SaveUploadedFiles(files, dir, DefaultAllowedExtensions)
	require.Error(t, err)
	assert.Nil(t, attachments)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveStoredFiles_BestEffort(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t, "a.pdf")
	require.NoError(t, req.ParseMultipartForm(1<<20))

	attachments, err := SaveUploadedFiles(req.MultipartForm.File["attachments"], dir, DefaultAllowedExtensions)
	require.NoError(t, err)

	require.NoError(t, RemoveStoredFiles(attachments))
	_, err = os.Stat(attachments[0].Path)
	assert.True(t, os.IsNotExist(err))

	// Removing already-missing files is not an error.
	assert.NoError(t, RemoveStoredFiles(attachments))
}
