package relpkg

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt-reader/xlsxreader/internal/zippkg"
)

const rootRels = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

const workbookRels = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet2.xml"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>
  <Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

func buildPackage(t *testing.T) *zippkg.Archive {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	parts := map[string]string{
		"_rels/.rels":               rootRels,
		"xl/workbook.xml":           "<workbook/>",
		"xl/_rels/workbook.xml.rels": workbookRels,
		"xl/worksheets/sheet1.xml":  "<worksheet/>",
		"xl/worksheets/sheet2.xml":  "<worksheet/>",
		"xl/sharedStrings.xml":      "<sst/>",
		"xl/styles.xml":             "<styleSheet/>",
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create part %s: %v", name, err)
		}
		w.Write([]byte(content))
	}
	zw.Close()
	f.Close()

	ar, err := zippkg.Open(path)
	if err != nil {
		t.Fatalf("zippkg.Open: %v", err)
	}
	t.Cleanup(func() { ar.Close() })
	return ar
}

func TestResolve(t *testing.T) {
	ar := buildPackage(t)
	g, err := Resolve(ar)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g.Workbook.OriginalPath != "xl/workbook.xml" {
		t.Errorf("Workbook.OriginalPath = %q, want xl/workbook.xml", g.Workbook.OriginalPath)
	}
	if g.SharedStrings.OriginalPath != "xl/sharedStrings.xml" {
		t.Errorf("SharedStrings.OriginalPath = %q, want xl/sharedStrings.xml", g.SharedStrings.OriginalPath)
	}
	if g.Styles.OriginalPath != "xl/styles.xml" {
		t.Errorf("Styles.OriginalPath = %q, want xl/styles.xml", g.Styles.OriginalPath)
	}
}

func TestResolveSheets_OrderedByRelIDSuffix(t *testing.T) {
	ar := buildPackage(t)
	g, err := Resolve(ar)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	declared := []DeclaredSheet{
		{Name: "Second", RelID: "rId2"},
		{Name: "First", RelID: "rId1"},
	}
	g.ResolveSheets(declared)

	if len(g.Sheets) != 2 {
		t.Fatalf("len(Sheets) = %d, want 2", len(g.Sheets))
	}
	if g.Sheets[0].Name != "First" || g.Sheets[1].Name != "Second" {
		t.Errorf("Sheets order = %+v, want First before Second", g.Sheets)
	}
}

func TestResolve_MissingWorkbookRelationship(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.xlsx")
	f, _ := os.Create(path)
	zw := zip.NewWriter(f)
	w, _ := zw.Create("_rels/.rels")
	w.Write([]byte(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`))
	zw.Close()
	f.Close()

	ar, err := zippkg.Open(path)
	if err != nil {
		t.Fatalf("zippkg.Open: %v", err)
	}
	defer ar.Close()

	if _, err := Resolve(ar); err == nil {
		t.Errorf("Resolve() should error when no officeDocument relationship exists")
	}
}

func TestRelationshipsPathFor(t *testing.T) {
	tests := []struct {
		part string
		want string
	}{
		{"xl/workbook.xml", "xl/_rels/workbook.xml.rels"},
		{"", "_rels/.rels"},
		{"workbook.xml", "_rels/workbook.xml.rels"},
	}
	for _, tt := range tests {
		if got := RelationshipsPathFor(tt.part); got != tt.want {
			t.Errorf("RelationshipsPathFor(%q) = %q, want %q", tt.part, got, tt.want)
		}
	}
}

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		target, referDir, want string
	}{
		{"worksheets\\sheet1.xml", "xl", "xl/worksheets/sheet1.xml"},
		{"/xl/sharedStrings.xml", "xl", "xl/sharedStrings.xml"},
		{"styles.xml", "xl", "xl/styles.xml"},
	}
	for _, tt := range tests {
		if got := normalizeTarget(tt.target, tt.referDir); got != tt.want {
			t.Errorf("normalizeTarget(%q, %q) = %q, want %q", tt.target, tt.referDir, got, tt.want)
		}
	}
}
