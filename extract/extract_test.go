package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(KindPDF, KindOf("report.PDF"))
	assert.Equal(KindDOCX, KindOf("notes.docx"))
	assert.Equal(KindMarkdown, KindOf("README.md"))
	assert.Equal(KindText, KindOf("a/b/c.txt"))
	assert.Equal(KindImage, KindOf("photo.JPeG"))
	assert.Equal(KindOther, KindOf("data.csv"))
	assert.Equal(KindOther, KindOf("Makefile"))
}

func TestExtractText(t *testing.T) {
	assert := assert.New(t)

	text, err := Extract([]byte("Paris is the capital of France."), "fact.txt")

	assert.NoError(err)
	assert.Equal("Paris is the capital of France.", text)
}

func TestExtractTextInvalidUTF8(t *testing.T) {
	assert := assert.New(t)

	_, err := Extract([]byte{0xff, 0xfe, 0xfd}, "broken.txt")
	assert.ErrorIs(err, ErrInvalidEncoding)

	view := View([]byte{0xff, 0xfe, 0xfd}, "broken.txt")
	assert.Equal("Error reading file content: "+ErrInvalidEncoding.Error(), view)
}

func TestExtractImage(t *testing.T) {
	assert := assert.New(t)

	text, err := Extract([]byte{0x89, 0x50, 0x4e, 0x47}, "logo.png")

	assert.NoError(err)
	assert.Equal("[Image file: logo.png]\nImage content cannot be displayed as text.", text)
}

func TestExtractOther(t *testing.T) {
	assert := assert.New(t)

	text, err := Extract([]byte("a,b\n1,2\n"), "table.csv")
	assert.NoError(err)
	assert.Equal("a,b\n1,2\n", text)

	text, err = Extract([]byte{0x00, 0xff, 0x10}, "blob.bin")
	assert.NoError(err)
	assert.Equal("[Binary file: blob.bin]\nContent cannot be displayed as text.", text)
}

func TestExtractDOCX(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(buf.Bytes(), "doc.docx")

	assert.NoError(err)
	assert.Equal("First paragraph.\nSecond paragraph.\n", text)
}

func TestExtractDOCXMissingBody(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("docProps/core.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract(buf.Bytes(), "empty.docx")
	assert.ErrorIs(err, ErrMissingDocumentXML)
}

func TestViewCorruptPDF(t *testing.T) {
	assert := assert.New(t)

	view := View([]byte("definitely not a pdf"), "broken.pdf")

	assert.Contains(view, "Error reading file content: ")
}

func TestExtractMarkdown(t *testing.T) {
	assert := assert.New(t)

	source := "# Capitals\n\nParis is the **capital** of France.\n\n```\ncode line\n```\n"

	text, err := Extract([]byte(source), "capitals.md")

	assert.NoError(err)
	assert.Contains(text, "Capitals\n")
	assert.Contains(text, "Paris is the capital of France.\n")
	assert.Contains(text, "code line\n")
	assert.NotContains(text, "**")
	assert.NotContains(text, "#")
}
