package format

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{XLSX, "XLSX"},
		{DOCX, "DOCX"},
		{PPTX, "PPTX"},
		{ODT, "ODT"},
		{NotAZip, "not a zip archive"},
		{Unknown, "unknown"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func buildZip(t *testing.T, names []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte("x")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDetect_XLSX(t *testing.T) {
	data := buildZip(t, []string{"[Content_Types].xml", "xl/workbook.xml", "xl/worksheets/sheet1.xml"})
	kind, err := Detect(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if kind != XLSX {
		t.Errorf("Detect() = %v, want XLSX", kind)
	}
}

func TestDetect_DOCX(t *testing.T) {
	data := buildZip(t, []string{"[Content_Types].xml", "word/document.xml"})
	kind, _ := Detect(bytes.NewReader(data), int64(len(data)))
	if kind != DOCX {
		t.Errorf("Detect() = %v, want DOCX", kind)
	}
}

func TestDetect_PPTX(t *testing.T) {
	data := buildZip(t, []string{"[Content_Types].xml", "ppt/presentation.xml"})
	kind, _ := Detect(bytes.NewReader(data), int64(len(data)))
	if kind != PPTX {
		t.Errorf("Detect() = %v, want PPTX", kind)
	}
}

func TestDetect_ODT(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("mimetype")
	w.Write([]byte("application/vnd.oasis.opendocument.text"))
	w, _ = zw.Create("content.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	kind, _ := Detect(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if kind != ODT {
		t.Errorf("Detect() = %v, want ODT", kind)
	}
}

func TestDetect_Unknown(t *testing.T) {
	data := buildZip(t, []string{"README.txt"})
	kind, _ := Detect(bytes.NewReader(data), int64(len(data)))
	if kind != Unknown {
		t.Errorf("Detect() = %v, want Unknown", kind)
	}
}

func TestDetect_NotAZip(t *testing.T) {
	data := []byte("not a zip file at all")
	kind, err := Detect(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if kind != NotAZip {
		t.Errorf("Detect() = %v, want NotAZip", kind)
	}
}
