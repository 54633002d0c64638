package templatesheet_test

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/nikitaxru/templatesheet"
)

// WorkbookSuite covers sheet assembly, naming and serialization.
type WorkbookSuite struct {
	suite.Suite
	cfg templatesheet.ExportConfig
}

func TestWorkbookSuite(t *testing.T) {
	suite.Run(t, new(WorkbookSuite))
}

func (s *WorkbookSuite) SetupTest() {
	s.cfg = templatesheet.DefaultConfig()
	s.cfg.Logger = log.New(io.Discard, "", 0)
}

func formBatch(title string, names ...string) templatesheet.Batch {
	records := make([]templatesheet.FormRecord, len(names))
	for i, n := range names {
		records[i] = templatesheet.FormRecord{
			FormTitle: "Intake", PageTitle: "Start", SectionTitle: "Main",
			FieldName: n, FieldType: "Text Input", IsRequired: i%2 == 0,
		}
	}
	return templatesheet.NewBatch(title, templatesheet.Forms, records)
}

func (s *WorkbookSuite) open(blob *templatesheet.Blob) *excelize.File {
	s.Require().Equal("xlsx", blob.Extension)
	f, err := excelize.OpenReader(bytes.NewReader(blob.Data))
	s.Require().NoError(err, "open xlsx")
	s.T().Cleanup(func() { _ = f.Close() })
	return f
}

func (s *WorkbookSuite) TestSheetsFollowBatchOrder() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{
		formBatch("Intake", "a", "b"),
		formBatch("Exit", "c"),
	}, s.cfg)
	s.Require().NoError(err)

	f := s.open(blob)
	s.Assert().Equal([]string{"Intake", "Exit"}, f.GetSheetList())

	rows, err := f.GetRows("Intake")
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Assert().Equal([]string{"Form Name", "Page", "Section", "Field Name", "Field Type", "Required", "Description / Options"}, rows[0])
	s.Assert().Equal([]string{"Intake", "Start", "Main", "a", "Text Input", "Yes"}, rows[1])
	s.Assert().Equal([]string{"Intake", "Start", "Main", "b", "Text Input", "No"}, rows[2])
}

func (s *WorkbookSuite) TestHeaderStyleAndWidths() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("Intake", "a")}, s.cfg)
	s.Require().NoError(err)
	f := s.open(blob)

	for _, cell := range []string{"A1", "G1"} {
		sid, err := f.GetCellStyle("Intake", cell)
		s.Require().NoError(err)
		st, err := f.GetStyle(sid)
		s.Require().NoError(err)
		s.Require().NotNil(st.Font, cell)
		s.Assert().True(st.Font.Bold, cell)
		s.Require().NotNil(st.Alignment, cell)
		s.Assert().Equal("center", st.Alignment.Horizontal, cell)
		s.Assert().Equal("pattern", st.Fill.Type, cell)
	}
	sid, err := f.GetCellStyle("Intake", "A2")
	s.Require().NoError(err)
	s.Assert().Zero(sid, "body cells stay unstyled")

	for col, want := range map[string]float64{"A": 25, "D": 30, "G": 40} {
		w, err := f.GetColWidth("Intake", col)
		s.Require().NoError(err)
		s.Assert().InDelta(want, w, 0.01, col)
	}
}

func (s *WorkbookSuite) TestLongTitleIsTruncated() {
	title := strings.Repeat("Quarterly", 5) // 45 characters
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch(title, "a")}, s.cfg)
	s.Require().NoError(err)

	names := s.open(blob).GetSheetList()
	s.Require().Len(names, 1)
	s.Assert().Equal(title[:31], names[0])
}

func (s *WorkbookSuite) TestCollidingPrefixesUseTitleTail() {
	prefix := strings.Repeat("p", 31)
	first, second := prefix+"-first-of-two", prefix+"-second-of-two"
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch(first, "a"), formBatch(second, "b")}, s.cfg)
	s.Require().NoError(err)

	names := s.open(blob).GetSheetList()
	s.Require().Len(names, 2)
	s.Assert().Equal(prefix, names[0])
	s.Assert().Equal(second[len(second)-31:], names[1])
	for _, n := range names {
		s.Assert().LessOrEqual(utf8.RuneCountInString(n), 31)
	}
}

func (s *WorkbookSuite) TestOrdinalFallbackIsDeterministic() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{
		formBatch("Form_2", "a"),
		formBatch("Q1/Q2 review", "b"), // "/" is not allowed in sheet names
		formBatch("Form_2", "c"),
	}, s.cfg)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"Form_2", "Form_3", "Form_4"}, s.open(blob).GetSheetList())
}

func (s *WorkbookSuite) TestDuplicateTitlesAreCaseInsensitive() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("Intake", "a"), formBatch("INTAKE", "b")}, s.cfg)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"Intake", "Form_2"}, s.open(blob).GetSheetList())
}

func (s *WorkbookSuite) TestEmptyTitleFallsBack() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{
		templatesheet.NewBatch("", templatesheet.Views, []templatesheet.ViewRecord{{ViewTitle: "v"}}),
	}, s.cfg)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"View_1"}, s.open(blob).GetSheetList())
}

func (s *WorkbookSuite) TestControlCharactersAreDroppedFromSheetNames() {
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{
		formBatch("a\x01b", "x"),
		formBatch("\t\n", "y"),
	}, s.cfg)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"ab", "Form_2"}, s.open(blob).GetSheetList())
}

func (s *WorkbookSuite) TestLongCellsAreTruncated() {
	long := strings.Repeat("ab", templatesheet.MaxCellLength)
	b := templatesheet.NewBatch("Views", templatesheet.Views, []templatesheet.ViewRecord{{ViewTitle: "v", ValueDefinition: long}})

	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{b}, s.cfg)
	s.Require().NoError(err)
	v, err := s.open(blob).GetCellValue("Views", "C2")
	s.Require().NoError(err)
	s.Assert().Equal(long[:templatesheet.MaxCellLength], v)

	s.cfg.OutputFormat = templatesheet.CSV
	blob, err = templatesheet.BuildWorkbook([]templatesheet.Batch{b}, s.cfg)
	s.Require().NoError(err)
	records, err := csv.NewReader(bytes.NewReader(blob.Data)).ReadAll()
	s.Require().NoError(err)
	s.Assert().Len(records[1][2], templatesheet.MaxCellLength)
}

func (s *WorkbookSuite) TestCSVCarriesFirstBatchOnly() {
	s.cfg.OutputFormat = templatesheet.CSV
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("One", "a", "b"), formBatch("Two", "c")}, s.cfg)
	s.Require().NoError(err)
	s.Assert().Equal("csv", blob.Extension)
	s.Assert().Equal("one.csv", blob.FileName("one"))

	records, err := csv.NewReader(bytes.NewReader(blob.Data)).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Assert().Equal("a", records[1][3])
	s.Assert().Equal("b", records[2][3])
}

func (s *WorkbookSuite) TestCSVMatchesFirstSheet() {
	b := formBatch("Intake", "a", "b, with comma", `c "quoted"`)
	b.Records = append(b.Records, templatesheet.FormRecord{FieldName: "d", Description: "line\nbreak"})

	xlsxBlob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{b}, s.cfg)
	s.Require().NoError(err)
	s.cfg.OutputFormat = templatesheet.CSV
	csvBlob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{b}, s.cfg)
	s.Require().NoError(err)

	sheetRows, err := s.open(xlsxBlob).GetRows("Intake")
	s.Require().NoError(err)
	csvRows, err := csv.NewReader(bytes.NewReader(csvBlob.Data)).ReadAll()
	s.Require().NoError(err)

	s.Require().Len(sheetRows, len(csvRows))
	for i := range csvRows {
		// GetRows drops trailing empty cells.
		row := make([]string, len(csvRows[i]))
		copy(row, sheetRows[i])
		s.Assert().Equal(csvRows[i], row, "row %d", i)
	}
}

func (s *WorkbookSuite) TestDetailedStyleAddsSummary() {
	s.cfg.TemplateStyle = templatesheet.StyleDetailed
	blob, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("Summary", "a", "b"), formBatch("Exit", "c")}, s.cfg)
	s.Require().NoError(err)

	f := s.open(blob)
	s.Assert().Equal([]string{"Summary", "Exit", "Summary_1"}, f.GetSheetList())
	rows, err := f.GetRows("Summary_1")
	s.Require().NoError(err)
	s.Assert().Equal([][]string{
		{"Sheet", "Source", "Kind", "Rows"},
		{"Summary", "Summary", "forms", "2"},
		{"Exit", "Exit", "forms", "1"},
	}, rows)
}

func (s *WorkbookSuite) TestEmptyExportIsRejected() {
	_, err := templatesheet.BuildWorkbook(nil, s.cfg)
	s.Assert().ErrorIs(err, templatesheet.ErrEmptyExport)

	_, err = templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("a"), formBatch("b")}, s.cfg)
	s.Assert().ErrorIs(err, templatesheet.ErrEmptyExport)
}

func (s *WorkbookSuite) TestUnsupportedFormat() {
	s.cfg.OutputFormat = "ods"
	_, err := templatesheet.BuildWorkbook([]templatesheet.Batch{formBatch("a", "x")}, s.cfg)
	s.Assert().ErrorIs(err, templatesheet.ErrUnsupportedFormat)
}

func (s *WorkbookSuite) TestManySheets() {
	var batches []templatesheet.Batch
	for i := 0; i < 12; i++ {
		batches = append(batches, formBatch("Same", fmt.Sprint(i)))
	}
	blob, err := templatesheet.BuildWorkbook(batches, s.cfg)
	s.Require().NoError(err)

	names := s.open(blob).GetSheetList()
	s.Require().Len(names, 12)
	seen := map[string]bool{}
	for _, n := range names {
		s.Assert().False(seen[strings.ToLower(n)], n)
		seen[strings.ToLower(n)] = true
	}
}
