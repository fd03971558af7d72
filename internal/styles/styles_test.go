package styles

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt-reader/xlsxreader/internal/zippkg"
)

const stylesXML = `<?xml version="1.0"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <numFmts count="1">
    <numFmt numFmtId="164" formatCode="0.0%"/>
  </numFmts>
  <cellStyleXfs count="1">
    <xf numFmtId="9" applyNumberFormat="1"/>
  </cellStyleXfs>
  <cellXfs count="4">
    <xf numFmtId="0" applyNumberFormat="0"/>
    <xf numFmtId="14" applyNumberFormat="1"/>
    <xf numFmtId="164" applyNumberFormat="1"/>
    <xf numFmtId="2" applyNumberFormat="1"/>
  </cellXfs>
</styleSheet>`

func buildStylesArchive(t *testing.T) *zippkg.Archive {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("xl/styles.xml")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	w.Write([]byte(stylesXML))
	zw.Close()
	f.Close()

	ar, err := zippkg.Open(path)
	if err != nil {
		t.Fatalf("zippkg.Open: %v", err)
	}
	t.Cleanup(func() { ar.Close() })
	return ar
}

func TestLoad_CellXfsNotConfusedWithCellStyleXfs(t *testing.T) {
	ar := buildStylesArchive(t)
	tbl, err := Load(ar, "xl/styles.xml", DefaultFormatConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(tbl.styles) != 4 {
		t.Fatalf("len(styles) = %d, want 4 (cellStyleXfs must not be counted)", len(tbl.styles))
	}
}

func TestFormat_General(t *testing.T) {
	ar := buildStylesArchive(t)
	tbl, err := Load(ar, "xl/styles.xml", DefaultFormatConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := tbl.Format("3.5", 0)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got != "3.5" {
		t.Errorf("Format(General) = %q, want %q", got, "3.5")
	}
}

func TestFormat_CustomPercentage(t *testing.T) {
	ar := buildStylesArchive(t)
	tbl, err := Load(ar, "xl/styles.xml", DefaultFormatConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := tbl.Format("0.4321", 2) // numFmtId=164 -> "0.0%"
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got != "43.21%" {
		t.Errorf("Format(0.0%%) of 0.4321 = %q, want %q", got, "43.21%")
	}
}

func TestFormat_Date(t *testing.T) {
	ar := buildStylesArchive(t)
	tbl, err := Load(ar, "xl/styles.xml", DefaultFormatConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// numFmtId=14 is the builtin "mm-dd-yy"
	got, err := tbl.Format("44197", 1) // 2021-01-01
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got != "01-01-21" {
		t.Errorf("Format(builtin date) = %q, want %q", got, "01-01-21")
	}
}

func TestFormat_NonNumericPassesThrough(t *testing.T) {
	ar := buildStylesArchive(t)
	tbl, err := Load(ar, "xl/styles.xml", DefaultFormatConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := tbl.Format("hello", 1)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Format(non-numeric) = %q, want %q", got, "hello")
	}
}

func TestCompileDateTime_ISOFormat(t *testing.T) {
	pf := &ParsedFormat{}
	compileDateTime(pf, "yyyy-mm-dd")
	if pf.dateTemplate != "Y-m-d" {
		t.Errorf("dateTemplate = %q, want %q", pf.dateTemplate, "Y-m-d")
	}
	got := renderDateTemplate(pf.dateTemplate, serialToTime(44197, false))
	if got != "2021-01-01" {
		t.Errorf("renderDateTemplate(%q) = %q, want %q", pf.dateTemplate, got, "2021-01-01")
	}
}

func TestCompileForceFormat_UnpaddedDayAndMonth(t *testing.T) {
	template := compileForceFormat("d.m.Y")
	got := renderDateTemplate(template, serialToTime(44197, false))
	if got != "1.1.2021" {
		t.Errorf("compileForceFormat(%q) rendered = %q, want %q", "d.m.Y", got, "1.1.2021")
	}
}

func TestCompileDateTime_MinutesAfterHour(t *testing.T) {
	pf := &ParsedFormat{}
	compileDateTime(pf, "h:mm:ss")
	if pf.dateTemplate != "G:i:s" {
		t.Errorf("dateTemplate = %q, want %q", pf.dateTemplate, "G:i:s")
	}
}

func TestApplyFraction_Reduction(t *testing.T) {
	pf := &ParsedFormat{Code: "# ?/?", Type: TypeFraction}
	got := applyFraction(pf, 0.5)
	if got != "1/2" {
		t.Errorf("applyFraction(0.5) = %q, want %q", got, "1/2")
	}
}

func TestApplyFraction_WholeNumberWithZeroNumerator(t *testing.T) {
	pf := &ParsedFormat{Code: "# ?/?", Type: TypeFraction}
	got := applyFraction(pf, 3.0)
	if got != "3" {
		t.Errorf("applyFraction(3.0) = %q, want %q", got, "3")
	}
}

func TestSerialToTime_LeapYearQuirk(t *testing.T) {
	tm := serialToTime(1, false)
	if tm.Year() != 1900 || tm.Month() != 1 || tm.Day() != 1 {
		t.Errorf("serialToTime(1) = %v, want 1900-01-01", tm)
	}
	tm = serialToTime(60, false) // day-60 skip: 1900-02-29 never existed, so 60 lands on 02-28 same as 59
	if tm.Month() != 2 || tm.Day() != 28 {
		t.Errorf("serialToTime(60) = %v, want Feb 28 1900", tm)
	}
	tm = serialToTime(61, false) // day 61 = 1900-03-01
	if tm.Month() != 3 || tm.Day() != 1 {
		t.Errorf("serialToTime(61) = %v, want Mar 1 1900", tm)
	}
}

func TestGCD(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{12, 8, 4},
		{7, 3, 1},
		{0, 5, 5},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := gcd(tt.a, tt.b); got != tt.want {
			t.Errorf("gcd(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
