package payload

import (
	"strings"
	"testing"
)

const sampleID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

func TestParseJSONPayload(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "itemId", raw: `{"itemId":"` + sampleID + `"}`},
		{name: "item_id", raw: `{"item_id":"` + sampleID + `"}`},
		{name: "id", raw: `{"id":"` + sampleID + `"}`},
		{name: "extra fields", raw: `{"kind":"item","itemId":"` + sampleID + `","title":"Bike pump"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.raw)
			if !ok {
				t.Fatalf("expected id from %q", tc.raw)
			}
			if got != sampleID {
				t.Fatalf("got %q want %q", got, sampleID)
			}
		})
	}
}

func TestParseJSONPrefersItemIDKey(t *testing.T) {
	other := "9b2d9f0e-1c3a-4b5d-8e6f-0a1b2c3d4e5f"
	raw := `{"id":"` + other + `","itemId":"` + sampleID + `"}`
	got, ok := Parse(raw)
	if !ok || got != sampleID {
		t.Fatalf("expected itemId to win, got %q ok=%v", got, ok)
	}
}

func TestParseUUIDSubstring(t *testing.T) {
	got, ok := Parse("https://example.test/items/" + sampleID + "/claim")
	if !ok || got != sampleID {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestParseColonDelimited(t *testing.T) {
	got, ok := Parse("TC:ITEM:" + sampleID)
	if !ok {
		t.Fatal("expected id from colon-delimited payload")
	}
	if got != sampleID {
		t.Fatalf("got %q want %q", got, sampleID)
	}
}

func TestParseBareID(t *testing.T) {
	got, ok := Parse("  " + sampleID + "  ")
	if !ok || got != sampleID {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestParseNoMatch(t *testing.T) {
	for _, raw := range []string{
		"hello-world",
		"",
		"   ",
		"{\"itemId\":\"not-a-uuid\"}",
		"TC:ITEM:12345",
		// version 0 is not a valid UUID version
		"3fa85f64-5717-0562-b3fc-2c963f66afa6",
	} {
		if got, ok := Parse(raw); ok {
			t.Fatalf("expected no match for %q, got %q", raw, got)
		}
	}
}

func TestIsItemID(t *testing.T) {
	if !IsItemID(sampleID) {
		t.Fatal("expected sample id to validate")
	}
	if IsItemID("hello-world") {
		t.Fatal("expected non-uuid to be rejected")
	}
}

func TestParseAcceptsUppercaseUUID(t *testing.T) {
	upper := strings.ToUpper(sampleID)
	got, ok := Parse("https://claims.example.test/items/" + upper)
	if !ok || got != upper {
		t.Fatalf("expected %q, got %q ok=%v", upper, got, ok)
	}
	if !IsItemID(upper) {
		t.Fatal("expected uppercase id to validate")
	}
}
