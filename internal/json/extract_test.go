package json

import (
	"strings"
	"testing"
)

type titlePayload struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func TestDecodePlainObject(t *testing.T) {
	got, err := Decode[titlePayload](`{"title": "Tides", "count": 3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Tides" || got.Count != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodeSurroundedByProse(t *testing.T) {
	text := "Here is the outline you asked for:\n{\"title\": \"Tides\", \"count\": 1}\nLet me know if it helps."
	got, err := Decode[titlePayload](text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 1 {
		t.Fatalf("expected count 1, got %d", got.Count)
	}
}

func TestDecodeFencedBlock(t *testing.T) {
	cases := map[string]string{
		"json tag":     "```json\n{\"title\": \"Tides\", \"count\": 2}\n```",
		"no tag":       "```\n{\"title\": \"Tides\", \"count\": 2}\n```",
		"with prose":   "Sure.\n```json\n{\"title\": \"Tides\", \"count\": 2}\n```\nThanks",
		"unterminated": "```json\n{\"title\": \"Tides\", \"count\": 2}",
	}
	for name, text := range cases {
		got, err := Decode[titlePayload](text)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if got.Title != "Tides" || got.Count != 2 {
			t.Fatalf("%s: unexpected payload: %+v", name, got)
		}
	}
}

func TestFencePrefersBlockOverBraces(t *testing.T) {
	text := "Use {placeholders} freely.\n```json\n{\"title\": \"Inner\", \"count\": 5}\n```"
	got, err := Decode[titlePayload](text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Inner" {
		t.Fatalf("expected fenced object, got %+v", got)
	}
}

func TestExtractRejectsNonObjects(t *testing.T) {
	for _, text := range []string{"", "   ", "no json here", "[1, 2, 3]", "{not json}"} {
		if _, err := Extract(text); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestExtractErrorPreviewIsTruncated(t *testing.T) {
	_, err := Extract(strings.Repeat("x", 500))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "...") {
		t.Fatalf("expected truncated preview, got %v", err)
	}
}

func TestDecodeIntoTypeMismatch(t *testing.T) {
	var out titlePayload
	if err := DecodeInto(`{"title": 7}`, &out); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
