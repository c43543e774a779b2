package docparser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// docxParagraphs returns the trimmed, non-empty text of the body-level
// paragraphs of a Word document. Paragraphs inside tables are skipped.
func docxParagraphs(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a docx archive: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, errors.New("docx archive has no " + documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", documentPart, err)
	}
	defer rc.Close()

	return readParagraphs(xml.NewDecoder(rc))
}

func readParagraphs(dec *xml.Decoder) ([]string, error) {
	var (
		out   []string
		stack []string
		text  strings.Builder
		inPar bool
		inRun bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body" {
				inPar = true
				text.Reset()
			}
			if inPar {
				switch name {
				case "t":
					inRun = true
				case "tab":
					text.WriteByte('\t')
				case "br", "cr":
					text.WriteByte('\n')
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch {
			case t.Name.Local == "t":
				inRun = false
			case t.Name.Local == "p" && inPar && len(stack) > 0 && stack[len(stack)-1] == "body":
				inPar = false
				if p := strings.TrimSpace(text.String()); p != "" {
					out = append(out, p)
				}
			}

		case xml.CharData:
			if inPar && inRun {
				text.Write(t)
			}
		}
	}
}
