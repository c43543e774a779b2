// Package docparser turns uploaded research documents into fact candidates.
//
// Information Hiding:
// - Word document (.docx) paragraph extraction
// - Text decoding with a Latin-1 fallback
// - Summary truncation and redundancy keys
package docparser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/richinex/bookforge/model"
)

const (
	summaryWords    = 32
	summaryFallback = 120
	minWords        = 3
	maxFilename     = 255
)

// ErrEmptyDocument is returned when the uploaded content has no bytes.
var ErrEmptyDocument = errors.New("document content is empty")

// Fact is one paragraph of a document, ready to become a candidate.
type Fact struct {
	Summary       string         `json:"summary"`
	Detail        string         `json:"detail"`
	Citation      model.Citation `json:"citation"`
	RedundancyKey string         `json:"redundancy_key"`
}

// Result is the outcome of parsing one document.
type Result struct {
	Filename       string `json:"filename"`
	Facts          []Fact `json:"facts"`
	ParagraphCount int    `json:"paragraph_count"`
	WordCount      int    `json:"word_count"`
}

// Parse extracts paragraphs of at least three words from data and emits one
// fact per paragraph. Files ending in .docx are read as Word documents; all
// others as text.
func Parse(filename string, data []byte) (*Result, error) {
	if strings.TrimSpace(filename) == "" || len(filename) > maxFilename {
		return nil, fmt.Errorf("invalid filename %q", filename)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var paragraphs []string
	if strings.HasSuffix(strings.ToLower(filename), ".docx") {
		var err error
		paragraphs, err = docxParagraphs(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
	} else {
		paragraphs = textParagraphs(data)
	}

	result := &Result{Filename: filename, Facts: []Fact{}}
	for _, p := range paragraphs {
		words := strings.Fields(p)
		if len(words) < minWords {
			continue
		}
		result.ParagraphCount++
		result.WordCount += len(words)
		result.Facts = append(result.Facts, Fact{
			Summary: summarise(p, words),
			Detail:  p,
			Citation: model.Citation{
				SourceTitle: filename,
				SourceType:  model.SourceOther,
			},
			RedundancyKey: RedundancyKey(p),
		})
	}
	return result, nil
}

// Candidates converts the parsed facts into unmapped research fact candidates
// for projectID. Paragraphs repeated within the document yield one candidate.
func (r *Result) Candidates(projectID string, promptIndex *int) []model.ResearchFactCandidate {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(r.Facts))
	out := make([]model.ResearchFactCandidate, 0, len(r.Facts))
	for _, f := range r.Facts {
		if seen[f.RedundancyKey] {
			continue
		}
		seen[f.RedundancyKey] = true
		filename := r.Filename
		out = append(out, model.ResearchFactCandidate{
			ID:             uuid.NewString(),
			ProjectID:      projectID,
			PromptIndex:    promptIndex,
			SourceFilename: &filename,
			Summary:        f.Summary,
			Detail:         f.Detail,
			Citation:       f.Citation,
			ExtractedAt:    now,
		})
	}
	return out
}

// RedundancyKey hashes the case- and whitespace-normalised paragraph.
func RedundancyKey(paragraph string) string {
	normalised := strings.ToLower(strings.Join(strings.Fields(paragraph), " "))
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalised))
}

func summarise(paragraph string, words []string) string {
	head := words
	if len(head) > summaryWords {
		head = head[:summaryWords]
	}
	summary := strings.TrimSpace(strings.Join(head, " "))
	if len(words) > summaryWords {
		summary += "..."
	}
	if summary == "" {
		runes := []rune(paragraph)
		summary = string(runes[:min(len(runes), summaryFallback)])
	}
	return summary
}

func textParagraphs(data []byte) []string {
	text := string(data)
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			text = string(decoded)
		} else {
			text = string(bytes.ToValidUTF8(data, nil))
		}
	}
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
