package llm

import "testing"

func TestDecodeJSON(t *testing.T) {
	cases := map[string]string{
		"plain":   `{"category":"tech"}`,
		"fenced":  "```json\n{\"category\":\"tech\"}\n```",
		"chatter": "Sure! Here is your concept: {\"category\":\"tech\"} Hope it helps {not json}",
		"braces":  `{"category":"tech","note":"a } inside"}`,
	}
	for name, in := range cases {
		var out struct {
			Category string `json:"category"`
		}
		if err := DecodeJSON(in, &out); err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if out.Category != "tech" {
			t.Errorf("%s: category = %q", name, out.Category)
		}
	}
}

func TestDecodeJSONArray(t *testing.T) {
	var out []string
	if err := DecodeJSON("keywords:\n[\"city night\", \"ocean\"]", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[1] != "ocean" {
		t.Fatalf("out = %v", out)
	}
	if err := DecodeJSON("nothing here", &out); err != ErrNoJSON {
		t.Fatalf("err = %v", err)
	}
}
