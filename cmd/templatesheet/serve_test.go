package main

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nikitaxru/templatesheet"
)

const (
	intakeForm = `{"id":"acme_intake","title":"Intake","pages":[{"title":"Start","sections":[{"title":"Main","fields":[
		{"id":"name","title":"Name","fieldType":"textInput","required":true},
		{"id":"photo","title":"Photo","fieldType":"image","displayWhen":{"field":"hasPhoto"}}
	]}]}]}`
	jobsView = `{"id":"acme_jobs_list","title":{"title":{"display":"Jobs"}},"columns":[
		{"title":"Customer","value":{"fetch":"job.customer"}},
		{"title":"Due","dataType":"Date","value":{"concat":[{"fetch":"job.due"},{"display":" UTC"}]}}
	]}`
)

func newTestServer() *server {
	cfg := templatesheet.DefaultConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	return newServer(cfg)
}

func upload(t *testing.T, target string, files map[string]string, order ...string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(part, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestServer().router.ServeHTTP(rec, req)
	return rec
}

func TestServeExportWorkbook(t *testing.T) {
	files := map[string]string{"acme_Intake.json": intakeForm, "acme_Broken.json": `{"pages": [`}
	rec := upload(t, "/export/forms", files, "acme_Intake.json", "acme_Broken.json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="forms.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "acme_Broken.json", rec.Header().Get("X-Skipped-Files"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Intake"}, f.GetSheetList())
	rows, err := f.GetRows("Intake")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestServeExportCSVWithQuery(t *testing.T) {
	files := map[string]string{"acme_Intake.json": intakeForm}
	rec := upload(t, "/export/forms?format=csv&excludeConditional=true", files, "acme_Intake.json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="forms.csv"`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Name", records[1][3])
}

func TestServeExportErrors(t *testing.T) {
	files := map[string]string{"acme_Intake.json": intakeForm, "x.json": `nope`}

	rec := upload(t, "/export/pages", files, "acme_Intake.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = upload(t, "/export/forms?format=pdf", files, "acme_Intake.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, "/export/forms?filter=fieldName%20%3D%3D", files, "acme_Intake.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, "/export/forms", files, "x.json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = upload(t, "/export/forms", files)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeTSV(t *testing.T) {
	files := map[string]string{"acme_Jobs.json": jobsView}
	rec := upload(t, "/tsv/views", files, "acme_Jobs.json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t,
		"View Name\tColumn\tValue Definition\tData Type\tDescription / Options\n"+
			"jobs\tCustomer\tfetch: job.customer\tText\t\n"+
			"jobs\tDue\tconcat: [fetch: job.due, display: \" UTC\"]\tDate\t",
		rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
