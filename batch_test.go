package templatesheet_test

import (
	"bytes"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nikitaxru/templatesheet"
)

var quiet = log.New(io.Discard, "", 0)

const (
	applicationForm = `{"id":"acme_app","title":"Application","pages":[{"title":"P1","sections":[{"title":"S1","fields":[
		{"id":"name","title":"Name","fieldType":"textInput","required":true},
		{"id":"notes","fieldType":"textarea","displayWhen":{"eq":["status","open"]}},
		{"id":"total","title":"Total","fieldType":"currency","editable":false}
	]}]}]}`
	exitForm = `{"id":"acme_exit","title":"Exit","pages":[{"sections":[{"fields":[{"id":"reason","fieldType":"dropdown"}]}]}]}`
)

func TestProcessIsolatesMalformedDocuments(t *testing.T) {
	results, err := templatesheet.Process(templatesheet.Forms, []templatesheet.File{
		{Name: "acme_Application.json", Content: applicationForm},
		{Name: "acme_Broken.json", Content: `{"id": "x", "pages": [`},
		{Name: "acme_List.json", Content: `[1, 2, 3]`},
		{Name: "acme_Exit.json", Content: exitForm},
	}, quiet)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.False(t, results[2].OK())
	assert.True(t, results[3].OK())

	batches := templatesheet.Batches(results)
	require.Len(t, batches, 2)
	assert.Equal(t, "Application", batches[0].Title)
	assert.Len(t, batches[0].Records, 3)
	assert.Equal(t, "Exit", batches[1].Title)
	assert.Len(t, batches[1].Records, 1)

	failures := templatesheet.Failures(results)
	require.Len(t, failures, 2)
	assert.Equal(t, "acme_Broken.json", failures[0].File)
	assert.ErrorIs(t, failures[0], templatesheet.ErrMalformedDocument)
	assert.Equal(t, "acme_List.json", failures[1].File)
	assert.Contains(t, failures[1].Error(), "acme_List.json")
}

func TestProcessKeepsUploadOrder(t *testing.T) {
	var files []templatesheet.File
	var want []string
	for _, name := range strings.Fields("k j i h g f e d c b a") {
		files = append(files, templatesheet.File{Name: "org_" + name + ".json", Content: `{"id":"` + name + `","title":"` + name + `"}`})
		want = append(want, name)
	}
	results, err := templatesheet.Process(templatesheet.Roles, files, quiet)
	require.NoError(t, err)
	var got []string
	for _, b := range templatesheet.Batches(results) {
		got = append(got, b.Title)
	}
	assert.Equal(t, want, got)
}

func TestProcessUnknownKind(t *testing.T) {
	_, err := templatesheet.Process("reports", nil, quiet)
	assert.ErrorIs(t, err, templatesheet.ErrUnknownKind)
}

func TestBatchTitle(t *testing.T) {
	cases := []struct {
		file, doc, want string
	}{
		{"acme_Intake.json", "Doc", "Intake"},
		{"uploads/acme_Intake Form.v2.json", "Doc", "Intake Form"},
		{"Intake.json", "Doc", "Intake"},
		{"acme_.json", "Doc", "Doc"},
		{"acme_.json", "", "acme_.json"},
		{"acme_.json", "None", "acme_.json"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, templatesheet.BatchTitle(tc.file, tc.doc), tc.file)
	}
}

func TestExport(t *testing.T) {
	results, err := templatesheet.Process(templatesheet.Forms, []templatesheet.File{
		{Name: "acme_Application.json", Content: applicationForm},
		{Name: "acme_Bad.json", Content: `nope`},
	}, quiet)
	require.NoError(t, err)

	cfg := templatesheet.DefaultConfig()
	cfg.Logger = quiet
	cfg.ExcludeConditionalFields = true
	cfg.Filter = `fieldType != "Currency" || !isRequired`
	blob, err := templatesheet.Export(results, cfg)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(blob.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Application")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[1][3])
	assert.Equal(t, "Total", rows[2][3])
	assert.Equal(t, "* Not Editable", rows[2][6])
}

func TestExportRejectsEmptySelections(t *testing.T) {
	results, err := templatesheet.Process(templatesheet.Forms, []templatesheet.File{{Name: "a_Exit.json", Content: exitForm}}, quiet)
	require.NoError(t, err)

	cfg := templatesheet.DefaultConfig()
	cfg.Filter = `isRequired`
	_, err = templatesheet.Export(results, cfg)
	assert.ErrorIs(t, err, templatesheet.ErrEmptyExport)

	onlyBroken, err := templatesheet.Process(templatesheet.Forms, []templatesheet.File{{Name: "a_X.json", Content: `{`}}, quiet)
	require.NoError(t, err)
	_, err = templatesheet.Export(onlyBroken, templatesheet.DefaultConfig())
	assert.ErrorIs(t, err, templatesheet.ErrEmptyExport)
}

func TestSelectRecordsRejectsBadFilters(t *testing.T) {
	b := templatesheet.NewBatch("Exit", templatesheet.Forms, []templatesheet.FormRecord{{FieldName: "a"}})
	for _, filter := range []string{`fieldName ==`, `fieldName`} {
		cfg := templatesheet.DefaultConfig()
		cfg.Filter = filter
		_, err := templatesheet.SelectRecords([]templatesheet.Batch{b}, cfg)
		assert.ErrorIs(t, err, templatesheet.ErrInvalidFilter, filter)
	}
}

func TestSelectRecordsLeavesInputUntouched(t *testing.T) {
	b := templatesheet.NewBatch("Exit", templatesheet.Forms, []templatesheet.FormRecord{{FieldName: "a"}, {FieldName: "b", Conditional: true}})
	cfg := templatesheet.DefaultConfig()
	cfg.ExcludeConditionalFields = true

	out, err := templatesheet.SelectRecords([]templatesheet.Batch{b}, cfg)
	require.NoError(t, err)
	assert.Len(t, out[0].Records, 1)
	assert.Len(t, b.Records, 2)
}
