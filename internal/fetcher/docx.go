package fetcher

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ExtractDOCX extracts a plain-text markdown rendering from raw DOCX bytes.
// DOCX is a zip archive; the document body lives at word/document.xml as
// WordprocessingML. Paragraphs become lines; runs within a paragraph are
// concatenated without inserting extra whitespace, matching how Word
// itself breaks text across <w:r> runs.
func ExtractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: not a valid zip archive: %w", err)
	}

	var docXML *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML = f
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx: missing word/document.xml")
	}

	rc, err := docXML.Open()
	if err != nil {
		return "", fmt.Errorf("docx: open document.xml: %w", err)
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("docx: read document.xml: %w", err)
	}

	return parseDocumentXML(data)
}

// wordprocessingML document.xml is a tree of <w:p> paragraphs containing
// <w:r><w:t>text</w:t></w:r> runs. Only the elements needed to recover
// plain text are modeled here; everything else (styles, tables-as-markup,
// drawings) is ignored.
type wBody struct {
	Paragraphs []wParagraph `xml:"body>p"`
}

type wParagraph struct {
	Runs []wRun `xml:"r"`
}

type wRun struct {
	Text []wText `xml:"t"`
}

type wText struct {
	Value string `xml:",chardata"`
}

func parseDocumentXML(data []byte) (string, error) {
	var body wBody
	if err := xml.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("docx: parse document.xml: %w", err)
	}

	var lines []string
	for _, p := range body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Value)
			}
		}
		lines = append(lines, b.String())
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", fmt.Errorf("docx: no text content extracted")
	}
	return text, nil
}
