package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const reutersDoc = `<?xml version="1.0" encoding="UTF-8"?>
<newsitem itemid="1">
	<headline>Obama visits Paris</headline>
	<text><p>Barack Obama didn't visit 10,000 towns.</p></text>
</newsitem>`

const semdocDoc = `<?xml version="1.0" encoding="UTF-8"?>
<semdoc>
	<sensesInfo>
		<sense fsk="obama/N1" csk="person/N1" isne="1">
			<neInfo><neT>person/N1</neT></neInfo>
		</sense>
	</sensesInfo>
	<docs>
		<para len="3" id="P0"><sent>
			<frag len="1"><dep src="Obama"/><fs sk="obama/N1" pc="0.9"/></frag>
			<frag len="1"><dep src="visits"/></frag>
			<frag len="1"><dep src="Paris"/></frag>
		</sent></para>
		<para len="8" id="P1"><sent>
			<frag len="2"><dep src="Barack Obama"/><fs sk="obama/N1" pc="0.95"/></frag>
			<frag len="1"><dep src="did"/></frag>
			<frag len="1"><dep src="n't"/></frag>
			<frag len="1"><dep src="visit"/></frag>
			<frag len="1"><dep src="10,000"/></frag>
			<frag len="1"><dep src="towns"/></frag>
			<frag len="1"><dep src="."/></frag>
		</sent></para>
	</docs>
</semdoc>`

const enamexDoc = `<?xml version="1.0" encoding="UTF-8"?>
<corpus>
	<subcorpus>
		<document name="news.training.xml">
			<p xml:lang="en" xml:id="P0">
				<sentence xml:id="P0E0"><ENAMEX type="PERSON">Barack Obama</ENAMEX> flew to New York.</sentence>
			</p>
		</document>
	</subcorpus>
</corpus>`

const evalRows = "Obama\tPERSON\tPERSON\nmet\tO\tO\nParis\tLOCATION\tLOCATION\n.\tO\tO\n\nJones\tPERSON\tO\nwent\tO\tPERSON\nhome\tO\tO\n"

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newClassifier answers /predict with a LOCATION wherever "New York"
// occurs in the request text.
func newClassifier(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type entity struct {
			Text        string  `json:"text"`
			Type        string  `json:"type"`
			Start       int     `json:"start"`
			End         int     `json:"end"`
			Probability float64 `json:"probability"`
		}
		resp := struct {
			Entities []entity `json:"entities"`
		}{Entities: []entity{}}
		if i := strings.Index(req.Text, "New York"); i >= 0 {
			resp.Entities = append(resp.Entities, entity{Text: "New York", Type: "LOCATION", Start: i, End: i + 8, Probability: 0.9})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const plainRows = "Obama\tper\nmet\tO\nParis\tloc\n\nReuters\torg\nsaid\tO\n"

// newTagger serves /tag with fixed labels per token and counts requests.
// A non-zero status makes every request fail with it.
func newTagger(t *testing.T, status int, requests *int32) *httptest.Server {
	t.Helper()
	labels := map[string]string{"Obama": "B-PERSON", "Paris": "LOCATION", "Reuters": "MEDIA"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		if status != 0 {
			http.Error(w, "unavailable", status)
			return
		}
		var req struct {
			Tokens []string `json:"tokens"`
		}
		if r.URL.Path != "/tag" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := struct {
			Labels []string `json:"labels"`
		}{Labels: make([]string, len(req.Tokens))}
		for i, tok := range req.Tokens {
			resp.Labels[i] = "O"
			if l, ok := labels[tok]; ok {
				resp.Labels[i] = l
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestVersion verifies the version command names the sqlite driver.
func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "nercorpus version "+version) || !strings.Contains(out, "sqlite driver") {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestTokenize verifies plain, offset, span and retokenize modes.
func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"plain", "Obama didn't go.", nil, "Obama\ndid\nn't\ngo\n.\n"},
		{"no contractions", "didn't", []string{"--no-contractions"}, "didn\n'\nt\n"},
		{"offsets", "Obama visits Paris", []string{"--offsets"}, "0\t5\tObama\n6\t12\tvisits\n13\t18\tParis\n"},
		{"span", "Obama visits Paris", []string{"--span", "3:8", "--span", "13:13"}, "0 1 2\n"},
		{"retokenize", "10 , 000 towns\n", []string{"--retokenize"}, "10,000 towns\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.stdin, append([]string{"tokenize"}, tt.args...)...)
			if err != nil {
				t.Fatalf("tokenize failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}

	if _, err := runCLI(t, "x", "tokenize", "--span", "nope"); err == nil {
		t.Error("expected an error for a malformed span")
	}
}

// TestEvaluate verifies the text report and the JSON form.
func TestEvaluate(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "rows.tsv"), evalRows)

	out, err := runCLI(t, "", "evaluate", path)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	for _, want := range []string{
		"Total sentences: 2",
		"Total tokens: 7",
		"True Positive: 2",
		"False Positive: 1",
		"True Negative: 3",
		"False Negative: 1",
		"Precision: 66.67",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, evalRows, "evaluate", "--json")
	if err != nil {
		t.Fatalf("evaluate --json failed: %v", err)
	}
	var got struct {
		Tokens   int `json:"tokens"`
		Counters struct {
			TruePositive int `json:"true_positive"`
		} `json:"counters"`
		Recall *float64 `json:"recall"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Tokens != 7 || got.Counters.TruePositive != 2 || got.Recall == nil {
		t.Errorf("decoded = %+v", got)
	}

	out, err = runCLI(t, "O\tO\n", "evaluate", "--json")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !strings.Contains(out, `"precision": null`) {
		t.Errorf("undefined precision should be null: %s", out)
	}
}

// TestEvaluateWithClassifier verifies that evaluate tags (token, expected)
// rows one sentence per request and optionally maps labels to CoNLL classes.
func TestEvaluateWithClassifier(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		args     []string
		want     []string
		requests int32
	}{
		{
			name:     "conll",
			args:     []string{"--conll"},
			want:     []string{"Total sentences: 2", "True Positive: 3", "True Negative: 2", "False Negative: 0"},
			requests: 2,
		},
		{
			name:     "raw labels",
			want:     []string{"True Positive: 0", "True Negative: 2", "False Negative: 3"},
			requests: 2,
		},
		{
			name:     "classifier down",
			status:   http.StatusServiceUnavailable,
			args:     []string{"--conll"},
			want:     []string{"Total tokens: 5", "True Negative: 2", "False Negative: 3"},
			requests: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			srv := newTagger(t, tt.status, &requests)
			path := writeFile(t, filepath.Join(t.TempDir(), "rows.tsv"), plainRows)

			args := append([]string{"evaluate", "--classifier", srv.URL, path}, tt.args...)
			out, err := runCLI(t, "", args...)
			if err != nil {
				t.Fatalf("evaluate failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("report missing %q:\n%s", want, out)
				}
			}
			if got := atomic.LoadInt32(&requests); got != tt.requests {
				t.Errorf("requests = %d, want %d", got, tt.requests)
			}
		})
	}
}

// TestEvaluateAnnotatedTranslated verifies that the annotated output carries
// the classifier label and its CoNLL class.
func TestEvaluateAnnotatedTranslated(t *testing.T) {
	var requests int32
	srv := newTagger(t, 0, &requests)
	dir := t.TempDir()
	annotated := filepath.Join(dir, "annotated.txt")

	if _, err := runCLI(t, plainRows, "evaluate", "--classifier", srv.URL, "--conll", "--annotated", annotated); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	data, err := os.ReadFile(annotated)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Obama per B-PERSON per\n", "Reuters org MEDIA org\n", "said O O O\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("annotated output missing %q:\n%s", want, data)
		}
	}
}

// TestEvaluateSeveralFiles verifies that totals merge across files while
// malformed line numbers stay with the file they came from.
func TestEvaluateSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, filepath.Join(dir, "a.tsv"), evalRows)
	second := writeFile(t, filepath.Join(dir, "b.tsv"), "Obama\tPERSON\tPERSON\nbroken\n")

	out, err := runCLI(t, "", "evaluate", "--json", first, second)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	var got struct {
		Tokens    int   `json:"tokens"`
		Skipped   int   `json:"skipped"`
		Malformed []int `json:"malformed"`
		Files     []struct {
			Source    string `json:"source"`
			Tokens    int    `json:"tokens"`
			Skipped   int    `json:"skipped"`
			Malformed []int  `json:"malformed"`
		} `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Tokens != 8 || got.Skipped != 1 || got.Malformed != nil {
		t.Errorf("totals = %+v", got)
	}
	if len(got.Files) != 2 {
		t.Fatalf("files = %+v", got.Files)
	}
	if got.Files[0].Source != "a.tsv" || got.Files[0].Tokens != 7 || got.Files[0].Skipped != 0 {
		t.Errorf("first file = %+v", got.Files[0])
	}
	if got.Files[1].Source != "b.tsv" || got.Files[1].Skipped != 1 || len(got.Files[1].Malformed) != 1 || got.Files[1].Malformed[0] != 2 {
		t.Errorf("second file = %+v", got.Files[1])
	}

	out, err = runCLI(t, "", "evaluate", first, second)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !strings.Contains(out, "Skipped malformed rows: 1") || !strings.Contains(out, "b.tsv: lines 2") {
		t.Errorf("report = %s", out)
	}
}

// TestAssemble verifies file and directory inputs and run recording.
func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	text := writeFile(t, filepath.Join(dir, "text", "doc.xml"), reutersDoc)
	writeFile(t, filepath.Join(dir, "text", "orphan.xml"), reutersDoc)
	overlay := writeFile(t, filepath.Join(dir, "overlay", "doc.semdoc"), semdocDoc)
	reg := filepath.Join(dir, "runs.db")

	want := "Obama\tB-PERSON\nvisits\tO\nParis\tO\n\n" +
		"Barack\tB-PERSON\nObama\tPERSON\ndid\tO\nn't\tO\nvisit\tO\n10,000\tO\ntowns\tO\n.\tO\n\n"

	out, err := runCLI(t, "", "--registry", reg, "corpus", "assemble", "--threshold", "0.5", text, overlay)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if out != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}

	outFile := filepath.Join(dir, "train.tsv")
	if _, err := runCLI(t, "", "--workers", "2", "corpus", "assemble", "-o", outFile,
		filepath.Join(dir, "text"), filepath.Join(dir, "overlay")); err != nil {
		t.Fatalf("directory assemble failed: %v", err)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("directory output:\n%s", data)
	}

	if _, err := runCLI(t, "", "corpus", "assemble", text, filepath.Join(dir, "overlay")); err == nil {
		t.Error("expected an error mixing a file and a directory")
	}

	out, err = runCLI(t, "", "--registry", reg, "runs", "list")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	if !strings.Contains(out, "assemble") || !strings.Contains(out, "ok") {
		t.Errorf("runs list = %q", out)
	}
}

// TestCombine verifies the predicted layer, bundle output and run detail.
func TestCombine(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "news.xml"), enamexDoc)
	outDir := filepath.Join(dir, "out")
	bundle := filepath.Join(dir, "combined.tar.xz")
	reg := filepath.Join(dir, "runs.db")
	srv := newClassifier(t)

	if _, err := runCLI(t, "", "--registry", reg, "corpus", "combine",
		"--classifier", srv.URL, "--out-dir", outDir, "--bundle", bundle, input); err != nil {
		t.Fatalf("combine failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "news.2layers.xml"))
	if err != nil {
		t.Fatalf("combined file missing: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `<ENAMEX type="PERSON">Barack Obama</ENAMEX>`) {
		t.Errorf("gold entity missing:\n%s", got)
	}
	if !strings.Contains(got, `type="LOCATION">New York</ENAMEX>`) {
		t.Errorf("predicted entity missing:\n%s", got)
	}

	out, err := runCLI(t, "", "bundle", "verify", bundle)
	if err != nil {
		t.Fatalf("bundle verify failed: %v", err)
	}
	if !strings.Contains(out, "1 files verified") {
		t.Errorf("verify output = %q", out)
	}

	out, err = runCLI(t, "", "--registry", reg, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var runs []struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("runs = %q (%v)", out, err)
	}
	if runs[0].Kind != "combine" || runs[0].Status != "ok" {
		t.Errorf("run = %+v", runs[0])
	}

	out, err = runCLI(t, "", "--registry", reg, "runs", "show", runs[0].ID)
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	if !strings.Contains(out, "news.2layers.xml") {
		t.Errorf("runs show = %q", out)
	}
}

// TestCombineRows verifies that combine writes training rows built from the
// combined sentences next to the ENAMEX output.
func TestCombineRows(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "news.xml"), enamexDoc)
	outDir := filepath.Join(dir, "out")
	srv := newClassifier(t)

	if _, err := runCLI(t, "", "corpus", "combine", "--rows",
		"--classifier", srv.URL, "--out-dir", outDir, input); err != nil {
		t.Fatalf("combine failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "news.2layers.tsv"))
	if err != nil {
		t.Fatalf("rows file missing: %v", err)
	}
	for _, want := range []string{
		"Barack\tB-PERSON\nObama\tPERSON\n",
		"New\tB-LOCATION\nYork\tLOCATION\n",
		"flew\tO\n",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("rows missing %q:\n%s", want, data)
		}
	}
	if !strings.HasSuffix(string(data), "\n\n") {
		t.Errorf("rows should end with a sentence break:\n%q", data)
	}
}

// TestCombineWithoutClassifier verifies the gold layer passes through.
func TestCombineWithoutClassifier(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "news.xml"), enamexDoc)
	outDir := filepath.Join(dir, "out")

	if _, err := runCLI(t, "", "corpus", "combine", "--classifier", "", "--out-dir", outDir, input); err != nil {
		t.Fatalf("combine failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "news.2layers.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "LOCATION") {
		t.Errorf("no predicted layer expected:\n%s", data)
	}

	if _, err := runCLI(t, "", "corpus", "combine", input); err == nil {
		t.Error("expected an error without an output")
	}
}

// TestRunsWithoutRegistry verifies registry commands need a registry.
func TestRunsWithoutRegistry(t *testing.T) {
	t.Setenv("NERCORPUS_REGISTRY", "")
	if _, err := runCLI(t, "", "runs", "list"); err == nil {
		t.Error("expected an error without a registry")
	}
}

// TestLoadEnv verifies dotenv files fill unset variables only.
func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, filepath.Join(dir, ".env"), "NERCORPUS_TEST_A=from-file\nNERCORPUS_TEST_B=from-file\n")
	t.Setenv("NERCORPUS_TEST_A", "")
	os.Unsetenv("NERCORPUS_TEST_A")
	t.Setenv("NERCORPUS_TEST_B", "preset")

	if err := loadEnv(env, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if got := os.Getenv("NERCORPUS_TEST_A"); got != "from-file" {
		t.Errorf("NERCORPUS_TEST_A = %q", got)
	}
	if got := os.Getenv("NERCORPUS_TEST_B"); got != "preset" {
		t.Errorf("NERCORPUS_TEST_B = %q", got)
	}
}
