package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
)

func TestUpload(t *testing.T) {
	server := newTestServer(t, testServerOptions{})

	request := newUploadRequest(t, "guide.zip", buildZip(t, simpleSiteFiles()), map[string]string{
		"name":        "My Guide",
		"description": "Free checklist",
	})
	recorder := server.do(request)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	result := decodeJson[publish.Result](t, recorder)
	assert.Equal(t, "my-guide", result.Slug)
	assert.Equal(t, "My Guide", result.Name)
	assert.Equal(t, "/lm/my-guide", result.URL)

	// the page is live immediately
	page := server.do(httptest.NewRequest(http.MethodGet, "/lm/my-guide", nil))
	assert.Equal(t, http.StatusOK, page.Code)
}

func TestUpload_Rejections(t *testing.T) {
	cases := []struct {
		name            string
		fileName        string
		fileContent     func(t *testing.T) []byte
		fields          map[string]string
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "missing name",
			fileName:        "guide.zip",
			fileContent:     func(t *testing.T) []byte { return buildZip(t, simpleSiteFiles()) },
			fields:          map[string]string{},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "File and name are required",
		},
		{
			name:            "missing file",
			fields:          map[string]string{"name": "Guide"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "File and name are required",
		},
		{
			name:            "not a zip file name",
			fileName:        "guide.tar.gz",
			fileContent:     func(t *testing.T) []byte { return buildZip(t, simpleSiteFiles()) },
			fields:          map[string]string{"name": "Guide"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Only ZIP files are accepted",
		},
		{
			name:            "zip extension but not zip bytes",
			fileName:        "guide.zip",
			fileContent:     func(t *testing.T) []byte { return []byte("%PDF-1.7") },
			fields:          map[string]string{"name": "Guide"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "file must be a ZIP archive",
		},
		{
			name:     "no index.html",
			fileName: "guide.zip",
			fileContent: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"readme.md": "# hi"})
			},
			fields:          map[string]string{"name": "Guide"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "ZIP must contain an index.html file",
		},
		{
			name:     "path traversal",
			fileName: "guide.zip",
			fileContent: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"index.html": "x", "../evil.sh": "rm -rf"})
			},
			fields:          map[string]string{"name": "Guide"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "ZIP contains invalid paths",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			server := newTestServer(t, testServerOptions{})

			var content []byte
			if testCase.fileContent != nil {
				content = testCase.fileContent(t)
			}
			recorder := server.do(newUploadRequest(t, testCase.fileName, content, testCase.fields))
			assert.Equal(t, testCase.expectedStatus, recorder.Code)
			assert.Equal(t, testCase.expectedMessage, errorMessage(t, recorder))

			slugs, err := server.store.ListPrefixes(context.Background())
			require.NoError(t, err)
			assert.Empty(t, slugs, "a rejected upload writes nothing")
		})
	}
}

func TestUpload_Collision(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	server.publishSite(t, "My Guide")

	recorder := server.do(newUploadRequest(t, "guide.zip", buildZip(t, simpleSiteFiles()), map[string]string{"name": "My Guide"}))
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, errorMessage(t, recorder), "already exists")
}

func TestUpload_TooLarge(t *testing.T) {
	// the multipart body of even the smallest site is well above 100 bytes
	server := newTestServer(t, testServerOptions{maxUploadBytes: 100})

	recorder := server.do(newUploadRequest(t, "guide.zip", buildZip(t, simpleSiteFiles()), map[string]string{"name": "Big"}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestListAndGetLeadMagnets(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	ctx := context.Background()

	guide := server.publishSite(t, "My Guide")
	server.publishSite(t, "Other")
	require.NoError(t, server.database.InsertSubmission(ctx, &models.Submission{
		ID: uuid.New().String(), LeadMagnetID: guide.ID, Email: "a@example.com",
	}))

	recorder := server.do(httptest.NewRequest(http.MethodGet, "/api/lead-magnets", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	listed := decodeJson[[]models.LeadMagnet](t, recorder)
	require.Len(t, listed, 2)
	assert.Equal(t, "other", listed[0].Slug)
	assert.Equal(t, 1, listed[1].SubmissionCount)

	recorder = server.do(httptest.NewRequest(http.MethodGet, "/api/lead-magnets/"+guide.ID, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	detail := decodeJson[map[string]any](t, recorder)
	assert.Equal(t, "my-guide", detail["slug"])
	assert.Len(t, detail["submissions"], 1)

	recorder = server.do(httptest.NewRequest(http.MethodGet, "/api/lead-magnets/missing", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestPatchLeadMagnet(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	guide := server.publishSite(t, "My Guide")
	target := "/api/lead-magnets/" + guide.ID

	recorder := server.doJson(t, http.MethodPatch, target, map[string]any{
		"name":        "<b>Renamed</b> Guide",
		"description": "New text",
		"status":      "archived",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	updated := decodeJson[models.LeadMagnet](t, recorder)
	assert.Equal(t, "Renamed Guide", updated.Name)
	assert.Equal(t, "my-guide", updated.Slug)
	assert.Equal(t, models.StatusArchived, updated.Status)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "New text", *updated.Description)

	// archived -> active is allowed
	recorder = server.doJson(t, http.MethodPatch, target, map[string]any{"status": "active"})
	assert.Equal(t, http.StatusOK, recorder.Code)

	// active -> draft is not
	recorder = server.doJson(t, http.MethodPatch, target, map[string]any{"status": "draft"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "cannot change status from active to draft", errorMessage(t, recorder))

	recorder = server.doJson(t, http.MethodPatch, target, map[string]any{"status": "deleted"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = server.doJson(t, http.MethodPatch, target, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = server.doJson(t, http.MethodPatch, "/api/lead-magnets/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// an empty description clears it
	recorder = server.doJson(t, http.MethodPatch, target, map[string]any{"description": ""})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, decodeJson[models.LeadMagnet](t, recorder).Description)
}

func TestDeleteLeadMagnet(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	ctx := context.Background()
	guide := server.publishSite(t, "My Guide")
	require.NoError(t, server.database.InsertSubmission(ctx, &models.Submission{
		ID: uuid.New().String(), LeadMagnetID: guide.ID, Email: "a@example.com",
	}))

	recorder := server.do(httptest.NewRequest(http.MethodDelete, "/api/lead-magnets/"+guide.ID, nil))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, recorder.Body.String())

	assert.Equal(t, http.StatusNotFound, server.do(httptest.NewRequest(http.MethodGet, "/api/lead-magnets/"+guide.ID, nil)).Code)
	assert.Equal(t, http.StatusNotFound, server.do(httptest.NewRequest(http.MethodGet, "/lm/my-guide", nil)).Code)

	exists, err := server.store.Exists(ctx, "my-guide/index.html")
	require.NoError(t, err)
	assert.False(t, exists)

	recorder = server.do(httptest.NewRequest(http.MethodDelete, "/api/lead-magnets/"+guide.ID, nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestExportSubmissionsCSV(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	ctx := context.Background()
	guide := server.publishSite(t, "My Guide")

	name := "Jane, Doe"
	data := `{"email":"jane@example.com","note":"says \"hi\""}`
	require.NoError(t, server.database.InsertSubmission(ctx, &models.Submission{
		ID: uuid.New().String(), LeadMagnetID: guide.ID, Email: "jane@example.com", Name: &name, Data: &data,
	}))
	formula := "=HYPERLINK(\"http://evil\")"
	require.NoError(t, server.database.InsertSubmission(ctx, &models.Submission{
		ID: uuid.New().String(), LeadMagnetID: guide.ID, Email: "bob@example.com", Name: &formula,
	}))

	recorder := server.do(httptest.NewRequest(http.MethodGet, "/api/lead-magnets/"+guide.ID+"/submissions.csv", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="my-guide-submissions.csv"`, recorder.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(strings.NewReader(recorder.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Email", "Name", "Date", "Extra Data"}, rows[0])

	byEmail := map[string][]string{}
	for _, row := range rows[1:] {
		byEmail[row[0]] = row
	}
	assert.Equal(t, "Jane, Doe", byEmail["jane@example.com"][1])
	assert.Equal(t, data, byEmail["jane@example.com"][3])
	assert.NotEmpty(t, byEmail["jane@example.com"][2])
	assert.Equal(t, "'"+formula, byEmail["bob@example.com"][1])
	assert.Equal(t, "", byEmail["bob@example.com"][3])
}
