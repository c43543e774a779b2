// Package manuscript renders the writing stage output as a readable book.
//
// Information Hiding:
// - Chapter grouping and numbering from order labels
// - Markdown layout
// - Markdown to HTML conversion
package manuscript

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/richinex/bookforge/model"
)

const pendingDraft = "_Draft pending._"

// Book is the input for rendering.
type Book struct {
	Title    string
	Synopsis string
	Writing  model.WritingBatch
}

var converter = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders the book with one level-two heading per chapter and one
// level-three heading per subchapter, in batch order.
func Markdown(b Book) string {
	var sb strings.Builder

	title := strings.TrimSpace(b.Title)
	if title == "" {
		title = "Untitled Manuscript"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if s := strings.TrimSpace(b.Synopsis); s != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", s)
	}

	var (
		currentChapter string
		chapterNum     int
		started        bool
	)
	for _, sub := range b.Writing.Subchapters {
		chapter := deref(sub.ChapterTitle)
		if !started || chapter != currentChapter {
			started = true
			currentChapter = chapter
			chapterNum = chapterNumber(sub.OrderLabel, chapterNum+1)
			if chapter == "" {
				fmt.Fprintf(&sb, "## Chapter %d\n\n", chapterNum)
			} else {
				fmt.Fprintf(&sb, "## Chapter %d: %s\n\n", chapterNum, chapter)
			}
		}

		heading := sub.Title
		if label := deref(sub.OrderLabel); label != "" {
			heading = label + " " + heading
		}
		fmt.Fprintf(&sb, "### %s\n\n", strings.TrimSpace(heading))

		draft := strings.TrimSpace(sub.FinalDraft())
		if draft == "" {
			draft = pendingDraft
		}
		sb.WriteString(draft)
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// HTML renders the book as a standalone HTML document.
func HTML(b Book) (string, error) {
	var body bytes.Buffer
	if err := converter.Convert([]byte(Markdown(b)), &body); err != nil {
		return "", fmt.Errorf("failed to convert manuscript: %w", err)
	}

	title := strings.TrimSpace(b.Title)
	if title == "" {
		title = "Untitled Manuscript"
	}
	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}

// chapterNumber reads the chapter part of an order label such as "2.1",
// returning fallback when the label is missing or malformed.
func chapterNumber(label *string, fallback int) int {
	if label == nil {
		return fallback
	}
	head, _, _ := strings.Cut(*label, ".")
	n, err := strconv.Atoi(head)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
