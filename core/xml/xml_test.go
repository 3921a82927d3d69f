package xml

import (
	"io"
	"strings"
	"testing"
)

const corpusSample = `<?xml version="1.0" encoding="UTF-8"?>
<corpus>
	<document name="doc1">
		<p xml:lang="en" xml:id="P0">
			<sentence xml:id="P0E0">The <ENAMEX type="INSTITUTION">National Archives</ENAMEX> opened.</sentence>
		</p>
	</document>
</corpus>`

// TestParseValidXML verifies parsing of well-formed XML.
func TestParseValidXML(t *testing.T) {
	doc, err := Parse([]byte(corpusSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	if root == nil || root.Name() != "corpus" {
		t.Fatalf("Root() = %v", root)
	}
}

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseReader(strings.NewReader(tt.xml)); err == nil {
				t.Error("Parse should fail for invalid XML")
			}
		})
	}
}

// TestValidate verifies the well-formedness check.
func TestValidate(t *testing.T) {
	if res := Validate([]byte(corpusSample)); !res.Valid {
		t.Errorf("sample should be well-formed: %v", res.Errors)
	}
	res := Validate([]byte("<corpus><p></corpus>"))
	if res.Valid || len(res.Errors) != 1 {
		t.Errorf("Validate() = %+v, want one error", res)
	}
}

// TestAttributes verifies prefixed attribute lookup and numeric parsing.
func TestAttributes(t *testing.T) {
	doc, err := Parse([]byte(`<root><para len="42" pc="0.75" xml:id="P1" bad="x"/></root>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	para, err := doc.XPathFirst("//para")
	if err != nil || para == nil {
		t.Fatalf("XPathFirst: %v, %v", para, err)
	}

	if got := para.Attr("xml:id"); got != "P1" {
		t.Errorf("Attr(xml:id) = %q", got)
	}
	if n, err := para.AttrInt("len", 0); err != nil || n != 42 {
		t.Errorf("AttrInt(len) = %d, %v", n, err)
	}
	if n, err := para.AttrInt("missing", 7); err != nil || n != 7 {
		t.Errorf("AttrInt(missing) = %d, %v", n, err)
	}
	if f, err := para.AttrFloat("pc", 0); err != nil || f != 0.75 {
		t.Errorf("AttrFloat(pc) = %v, %v", f, err)
	}
	if _, err := para.AttrInt("bad", 0); err == nil {
		t.Error("AttrInt should reject non-numeric values")
	}
	if _, ok := para.LookupAttr("nope"); ok {
		t.Error("LookupAttr should report missing attributes")
	}
}

// TestContent verifies mixed content is returned in document order.
func TestContent(t *testing.T) {
	doc, err := Parse([]byte(corpusSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	sentence, err := doc.XPathFirst("//sentence")
	if err != nil || sentence == nil {
		t.Fatalf("XPathFirst: %v", err)
	}

	content := sentence.Content()
	if len(content) != 3 {
		t.Fatalf("Content() returned %d nodes", len(content))
	}
	if !content[0].IsText() || content[0].Text() != "The " {
		t.Errorf("first node = %q", content[0].Text())
	}
	if content[1].Name() != "ENAMEX" || content[1].Attr("type") != "INSTITUTION" {
		t.Errorf("second node = %s", content[1].Name())
	}
	if sentence.Text() != "The National Archives opened." {
		t.Errorf("Text() = %q", sentence.Text())
	}

	ps, err := doc.Root().XPath("document/p")
	if err != nil || len(ps) != 1 {
		t.Fatalf("relative XPath: %d, %v", len(ps), err)
	}
	if len(ps[0].ChildrenNamed("sentence")) != 1 {
		t.Error("ChildrenNamed(sentence) should find one sentence")
	}
}

// TestInvalidXPath verifies compile errors are reported.
func TestInvalidXPath(t *testing.T) {
	doc, err := Parse([]byte(corpusSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := doc.XPath("//["); err == nil {
		t.Error("XPath should reject invalid expressions")
	}
	if _, err := NewStream(strings.NewReader(corpusSample), "//["); err == nil {
		t.Error("NewStream should reject invalid expressions")
	}
}

// TestStream verifies elements are pulled one at a time until io.EOF.
func TestStream(t *testing.T) {
	input := `<doc><para len="3">one</para><para len="3">two</para><other/><para len="5">three</para></doc>`
	stream, err := NewStream(strings.NewReader(input), "//para")
	if err != nil {
		t.Fatalf("NewStream failed: %v", err)
	}

	var got []string
	for {
		n, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, n.Text())
	}
	if strings.Join(got, ",") != "one,two,three" {
		t.Errorf("streamed %v", got)
	}
}
