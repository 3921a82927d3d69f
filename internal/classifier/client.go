// Package classifier is an HTTP client for an external named-entity
// recognizer. It satisfies corpus.Predictor.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/FocuswithJustin/nercorpus/core/cache"
	"github.com/FocuswithJustin/nercorpus/core/errors"
	"github.com/FocuswithJustin/nercorpus/core/ner"
	"github.com/FocuswithJustin/nercorpus/core/span"
)

// Options configures a Client.
type Options struct {
	// Endpoint is the base URL; requests go to Endpoint+"/predict" and
	// Endpoint+"/tag".
	Endpoint string

	Timeout time.Duration

	// RatePerSecond caps request throughput. Zero disables the limiter.
	RatePerSecond float64
	Burst         int

	UserAgent string

	// Cache, when set, answers repeated texts without a request.
	Cache *cache.PredictionCache

	// HTTPClient overrides the default client; Timeout is then ignored.
	HTTPClient *http.Client
}

// DefaultOptions returns options for a local recognizer.
func DefaultOptions() Options {
	return Options{
		Endpoint:      "http://localhost:8080",
		Timeout:       30 * time.Second,
		RatePerSecond: 20,
		Burst:         5,
		UserAgent:     "nercorpus/1.0",
	}
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("classifier returned %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("classifier returned %s", e.Status)
}

func (e *HTTPError) Unwrap() error {
	return errors.ErrUnavailable
}

// Tagged is one token with the label the recognizer gave it.
type Tagged struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// Client talks to the recognizer. It is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	cache      *cache.PredictionCache
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewValidation("endpoint", fmt.Sprintf("not an http(s) URL: %q", opts.Endpoint))
	}
	if opts.RatePerSecond < 0 {
		return nil, errors.NewValidation("rate", "must not be negative")
	}

	c := &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		cache:      opts.Cache,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c, nil
}

// Endpoint returns the base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type predictRequest struct {
	Text string `json:"text"`
}

type wireEntity struct {
	Text        string   `json:"text"`
	Type        string   `json:"type"`
	SubTypes    []string `json:"subtypes,omitempty"`
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Probability float64  `json:"probability"`
}

type predictResponse struct {
	Entities []wireEntity `json:"entities"`
}

// Predict returns the entities found in text, offsets relative to text.
// Entities whose span falls outside text are dropped; unknown type names
// map to ner.Unknown.
func (c *Client) Predict(ctx context.Context, text string) ([]ner.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if c.cache != nil {
		if es, ok := c.cache.Get(text); ok {
			return es, nil
		}
	}

	var resp predictResponse
	if err := c.post(ctx, "/predict", predictRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	out := make([]ner.Entity, 0, len(resp.Entities))
	for _, w := range resp.Entities {
		sp := span.New(w.Start, w.End)
		if !sp.Valid() || sp.IsEmpty() || sp.End > len(text) {
			continue
		}
		t, err := ner.ParseType(w.Type)
		if err != nil {
			t = ner.Unknown
		}
		e := ner.NewEntity(sp.Slice(text), t, sp)
		for _, st := range w.SubTypes {
			e = e.WithSubType(st)
		}
		e.Probability = w.Probability
		e.Confidence = w.Probability
		e.Origin = ner.OriginPredicted
		out = append(out, e)
	}
	ner.SortEntities(out)

	if c.cache != nil {
		c.cache.Put(text, out)
	}
	return out, nil
}

type tagRequest struct {
	Tokens []string `json:"tokens"`
}

type tagResponse struct {
	Labels []string `json:"labels"`
}

// Tag labels a pre-tokenized sentence. The response must carry one label
// per token.
func (c *Client) Tag(ctx context.Context, tokens []string) ([]Tagged, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var resp tagResponse
	if err := c.post(ctx, "/tag", tagRequest{Tokens: tokens}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Labels) != len(tokens) {
		return nil, &errors.ParseError{
			Format:  "classifier",
			Message: fmt.Sprintf("got %d labels for %d tokens", len(resp.Labels), len(tokens)),
		}
	}
	out := make([]Tagged, len(tokens))
	for i, tok := range tokens {
		label := resp.Labels[i]
		if label == "" {
			label = ner.Outside
		}
		out[i] = Tagged{Token: tok, Label: label}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.ParseError{Format: "classifier", Message: err.Error(), Err: err}
	}
	return nil
}
