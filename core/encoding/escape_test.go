package encoding

import "testing"

func TestEscapeXMLText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "National Archives", "National Archives"},
		{"ampersand", "AT&T", "AT&amp;T"},
		{"angle brackets", "a < b > c", "a &lt; b &gt; c"},
		{"quotes untouched", `"Corp."`, `"Corp."`},
		{"unicode", "Bruxelles & Liège", "Bruxelles &amp; Liège"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeXMLText(tt.input); got != tt.want {
				t.Errorf("EscapeXMLText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeXMLAttr(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PERSON", "PERSON"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"R&D <x>", "R&amp;D &lt;x&gt;"},
	}

	for _, tt := range tests {
		if got := EscapeXMLAttr(tt.input); got != tt.want {
			t.Errorf("EscapeXMLAttr(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEscapeField(t *testing.T) {
	if got := EscapeField("a\tb\nc\rd"); got != "a b c d" {
		t.Errorf("EscapeField() = %q", got)
	}
	if got := EscapeField("New"); got != "New" {
		t.Errorf("EscapeField() = %q", got)
	}
}
