package document

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractPlainText(t *testing.T) {
	got, err := Extract("notas.txt", []byte("\xef\xbb\xbf  precios de temporada \n"))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "precios de temporada" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	if _, err := Extract("blob.dat", []byte{0xff, 0xfe, 0x00, 0x81}); err == nil {
		t.Fatalf("expected error for binary payload")
	}
}

func TestExtractHTMLSkipsScripts(t *testing.T) {
	page := `<html><head><title>Manual</title><style>p{color:red}</style></head>
<body><p>Lista&nbsp;de <b>precios</b></p><script>var x = "oculto";</script><p>vigente</p></body></html>`
	got, err := Extract("manual.HTML", []byte(page))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "Manual Lista de precios vigente" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hola</w:t></w:r><w:r><w:t xml:space="preserve"> mundo</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Segunda</w:t><w:tab/><w:t>línea</w:t></w:r></w:p>
</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	got, err := Extract("carta.docx", buf.Bytes())
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "Hola mundo\nSegunda\tlínea" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Producto")
	_ = f.SetCellValue("Sheet1", "B1", "Precio")
	_ = f.SetCellValue("Sheet1", "A2", "Camisa")
	_ = f.SetCellValue("Sheet1", "B2", 1999)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	got, err := Extract("precios.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "Sheet1\nProducto\tPrecio\nCamisa\t1999" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractInvalidContainers(t *testing.T) {
	for _, name := range []string{"a.pdf", "a.xlsx", "a.docx"} {
		if _, err := Extract(name, []byte("not really")); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if strings.TrimSpace(err.Error()) == "" {
			t.Fatalf("%s: empty error message", name)
		}
	}
}
