package xlsxreader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

const testRootRels = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const testWorkbookRels = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>
  <Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const testWorkbookXML = `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets>
    <sheet name="Sheet1" sheetId="1" r:id="rId1"/>
    <sheet name="Hidden" sheetId="2" r:id="rId2" state="hidden"/>
  </sheets>
</workbook>`

const testSharedStrings = `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" uniqueCount="2">
  <si><t>Name</t></si>
  <si><t>Alice</t></si>
</sst>`

const testStylesXML = `<?xml version="1.0"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <cellXfs count="1">
    <xf numFmtId="0" applyNumberFormat="0"/>
  </cellXfs>
</styleSheet>`

const testSheet1XML = `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1" spans="1:2"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
    <row r="2" spans="1:2"><c r="A1"><v>42</v></c><c r="B1"><v>7.5</v></c></row>
  </sheetData>
</worksheet>`

const testSheet2XML = `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData/>
</worksheet>`

func buildTestWorkbook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	parts := map[string]string{
		"_rels/.rels":                testRootRels,
		"xl/workbook.xml":            testWorkbookXML,
		"xl/_rels/workbook.xml.rels": testWorkbookRels,
		"xl/worksheets/sheet1.xml":   testSheet1XML,
		"xl/worksheets/sheet2.xml":   testSheet2XML,
		"xl/sharedStrings.xml":       testSharedStrings,
		"xl/styles.xml":              testStylesXML,
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create part %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestOpen_SheetsAndVisibility(t *testing.T) {
	r, err := Open(buildTestWorkbook(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	sheets := r.Sheets()
	if len(sheets) != 2 {
		t.Fatalf("len(Sheets()) = %d, want 2", len(sheets))
	}
	if sheets[0].Name != "Sheet1" || sheets[0].Visibility != Visible {
		t.Errorf("sheets[0] = %+v, want Sheet1/Visible", sheets[0])
	}
	if sheets[1].Name != "Hidden" || sheets[1].Visibility != Hidden {
		t.Errorf("sheets[1] = %+v, want Hidden/Hidden", sheets[1])
	}
}

func TestReader_IteratesSharedStringsAndNumbers(t *testing.T) {
	r, err := Open(buildTestWorkbook(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if !r.Next() {
		t.Fatalf("Next() = false on first row")
	}
	row := r.Row()
	if row["0"] != "Name" || row["1"] != "Alice" {
		t.Errorf("header row = %v, want Name/Alice", row)
	}

	if !r.Next() {
		t.Fatalf("Next() = false on second row")
	}
	row = r.Row()
	if row["0"] != "42" {
		t.Errorf("row[0] = %v, want 42", row["0"])
	}

	if r.Next() {
		t.Errorf("Next() = true past the last row")
	}
}

func TestReader_ChangeSheetByName(t *testing.T) {
	r, err := Open(buildTestWorkbook(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if err := r.ChangeSheetByName("Hidden"); err != nil {
		t.Fatalf("ChangeSheetByName() error = %v", err)
	}
	if r.Next() {
		t.Errorf("Next() on empty sheet should be false")
	}

	if err := r.ChangeSheetByName("Nonexistent"); err != ErrSheetNotFound {
		t.Errorf("ChangeSheetByName(Nonexistent) error = %v, want ErrSheetNotFound", err)
	}
}

func TestReader_OutputColumnNames(t *testing.T) {
	r, err := Open(buildTestWorkbook(t), WithOutputColumnNames(true))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	r.Next()
	row := r.Row()
	if _, ok := row["A"]; !ok {
		t.Errorf("row keys = %v, want an \"A\" key", row)
	}
}

func TestReader_CloseRemovesTempFiles(t *testing.T) {
	r, err := Open(buildTestWorkbook(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	tempFiles := r.TempFiles()
	if len(tempFiles) == 0 {
		t.Fatalf("TempFiles() is empty, want at least the extracted worksheet part")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, p := range tempFiles {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("temp file %s still exists after Close()", p)
		}
	}
}

func TestOpen_RejectsNonXLSXPackage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notxlsx.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("word/document.xml")
	w.Write([]byte("<document/>"))
	zw.Close()
	f.Close()

	if _, err := Open(path); err == nil {
		t.Errorf("Open() on a DOCX package should return an error")
	}
}
