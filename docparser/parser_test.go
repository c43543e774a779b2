package docparser

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/richinex/bookforge/model"
)

func TestParseEmptyDocument(t *testing.T) {
	if _, err := Parse("notes.txt", nil); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := Parse("", []byte("some words here")); err == nil {
		t.Fatal("expected error for empty filename")
	}
}

func TestParseTextKeepsParagraphsOfThreeWords(t *testing.T) {
	data := []byte("Tide mills date to 600 AD.\r\n\r\nToo short\n   \nThe Rance barrage opened in 1966.\rok\n")
	res, err := Parse("notes.txt", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ParagraphCount != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", res.ParagraphCount)
	}
	if res.WordCount != 6+6 {
		t.Fatalf("expected 12 words, got %d", res.WordCount)
	}
	first := res.Facts[0]
	if first.Detail != "Tide mills date to 600 AD." || first.Summary != first.Detail {
		t.Fatalf("unexpected first fact: %+v", first)
	}
	if first.Citation.SourceTitle != "notes.txt" || first.Citation.SourceType != model.SourceOther {
		t.Fatalf("unexpected citation: %+v", first.Citation)
	}
	if len(first.RedundancyKey) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", first.RedundancyKey)
	}
}

func TestParseNoParagraphs(t *testing.T) {
	res, err := Parse("notes.md", []byte("one\ntwo words\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 0 || res.ParagraphCount != 0 || res.WordCount != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.Facts == nil {
		t.Fatal("facts should be an empty list, not nil")
	}
}

func TestSummaryTruncatesAtThirtyTwoWords(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = "w"
	}
	res, err := Parse("long.txt", []byte(strings.Join(words, " ")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Join(words[:32], " ") + "..."
	if res.Facts[0].Summary != want {
		t.Fatalf("unexpected summary %q", res.Facts[0].Summary)
	}
	if res.WordCount != 40 {
		t.Fatalf("expected 40 words, got %d", res.WordCount)
	}
}

func TestParseLatin1Fallback(t *testing.T) {
	// "Café au lait matin" with é as 0xE9
	data := []byte{'C', 'a', 'f', 0xE9, ' ', 'a', 'u', ' ', 'l', 'a', 'i', 't', ' ', 'm', 'a', 't', 'i', 'n'}
	res, err := Parse("latin.txt", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Facts[0].Detail; got != "Café au lait matin" {
		t.Fatalf("expected decoded text, got %q", got)
	}
}

func TestRedundancyKeyIgnoresCaseAndSpacing(t *testing.T) {
	a := RedundancyKey("Tide mills  date to\t600 AD")
	b := RedundancyKey("tide mills date to 600 ad")
	if a != b {
		t.Fatalf("expected equal keys, got %s and %s", a, b)
	}
	if a == RedundancyKey("tide mills date to 700 ad") {
		t.Fatal("different text should not collide")
	}
}

func TestCandidatesSkipRepeatedParagraphs(t *testing.T) {
	data := []byte("Tide mills date to 600 AD.\nBarrages came much later.\ntide mills date TO 600 AD.\n")
	res, err := Parse("notes.txt", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(res.Facts))
	}

	idx := 2
	projectID := uuid.NewString()
	cands := res.Candidates(projectID, &idx)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	for _, c := range cands {
		if _, err := uuid.Parse(c.ID); err != nil {
			t.Fatalf("candidate id is not a uuid: %q", c.ID)
		}
		if c.ProjectID != projectID || *c.PromptIndex != 2 || *c.SourceFilename != "notes.txt" {
			t.Fatalf("unexpected candidate: %+v", c)
		}
		if c.ExtractedAt.IsZero() {
			t.Fatal("expected extraction time")
		}
	}
	if cands[1].Detail != "Barrages came much later." {
		t.Fatalf("unexpected order: %q", cands[1].Detail)
	}
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Tide mills </w:t></w:r><w:r><w:t>date to 600 AD.</w:t></w:r></w:p>
<w:p><w:r><w:t>  </w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Table cell text is skipped</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>Short one</w:t></w:r></w:p>
<w:p><w:r><w:t>Rance</w:t><w:tab/><w:t>opened in 1966.</w:t></w:r></w:p>
<w:sectPr/>
</w:body>
</w:document>`

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestParseDocx(t *testing.T) {
	data := buildDocx(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		documentPart:          docxBody,
	})
	res, err := Parse("Research.DOCX", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ParagraphCount != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %+v", res.ParagraphCount, res.Facts)
	}
	if res.Facts[0].Detail != "Tide mills date to 600 AD." {
		t.Fatalf("runs should join, got %q", res.Facts[0].Detail)
	}
	if res.Facts[1].Detail != "Rance\topened in 1966." {
		t.Fatalf("tabs should be kept, got %q", res.Facts[1].Detail)
	}
}

func TestParseDocxRejectsBrokenArchives(t *testing.T) {
	if _, err := Parse("broken.docx", []byte("not a zip")); err == nil {
		t.Fatal("expected error for non-zip content")
	}
	data := buildDocx(t, map[string]string{"word/styles.xml": `<w:styles/>`})
	if _, err := Parse("nodoc.docx", data); err == nil || !strings.Contains(err.Error(), documentPart) {
		t.Fatalf("expected missing part error, got %v", err)
	}
}
