package llm

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a": 1}`, `{"a": 1}`},
		{"prose around", `Sure! Here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"nested", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"brace in string", `{"a": "{not a block}"}`, `{"a": "{not a block}"}`},
		{"escaped quote", `{"a": "she said \"hi\""}`, `{"a": "she said \"hi\""}`},
	}
	for _, c := range cases {
		got, err := ExtractJSONObject(c.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestExtractJSONObjectErrors(t *testing.T) {
	if _, err := ExtractJSONObject("no json here"); err == nil {
		t.Fatalf("expected error for missing JSON")
	}
	if _, err := ExtractJSONObject(`{"unbalanced": `); err == nil {
		t.Fatalf("expected error for unbalanced JSON")
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, err := ExtractJSONArray(`The queries are: ["a", "b", "c"].`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `["a", "b", "c"]` {
		t.Fatalf("got %q", got)
	}

	got, err = ExtractJSONArray(`[["nested"], ["arrays"]]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `[["nested"], ["arrays"]]` {
		t.Fatalf("got %q", got)
	}
}
