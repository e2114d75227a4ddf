// Package ml is the adapter for the external text-classification and
// clustering services. Every call fails closed: a dead or misbehaving ML
// service degrades triage and hotspot output but never fails ingestion.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidewatch/tidewatch/internal/database"
)

// DefaultTimeout bounds each ML service call
const DefaultTimeout = 10 * time.Second

// Classification is the normalized text-classification result
type Classification struct {
	Label      database.MLLabel `json:"label"`
	Confidence float64          `json:"confidence"`
}

// FailClosedClassification is what ClassifyText returns when the service
// is unreachable or returns garbage
var FailClosedClassification = Classification{Label: database.LabelIrrelevant, Confidence: 0}

// Point is one report coordinate forwarded to the clustering service
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Cluster is one geographic hotspot returned by the clustering service
type Cluster struct {
	Center Point `json:"center"`
	Count  int   `json:"count"`
}

// TamperCheck is the normalized image-heuristics result
type TamperCheck struct {
	Verdict database.HeuristicsVerdict `json:"verdict"`
	Reasons []string                   `json:"reasons"`
}

// Client calls the ML service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an ML service client. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ClassifyText classifies report text. On any error the result falls back
// to {irrelevant, 0} so ingestion always completes.
func (c *Client) ClassifyText(ctx context.Context, text string) Classification {
	var result Classification
	err := c.post(ctx, "/classify", map[string]string{"text": text}, &result)
	if err != nil {
		log.Printf("ML classify error: %v", err)
		return FailClosedClassification
	}
	if !validLabel(result.Label) {
		log.Printf("ML classify returned unknown label %q", result.Label)
		return FailClosedClassification
	}
	result.Confidence = clamp01(result.Confidence)
	return result
}

// ComputeHotspots forwards report coordinates to the clustering service and
// returns its clusters unmodified. On any error it returns an empty list.
func (c *Client) ComputeHotspots(ctx context.Context, points []Point) []Cluster {
	if len(points) == 0 {
		return []Cluster{}
	}
	var clusters []Cluster
	err := c.post(ctx, "/hotspot", map[string]interface{}{"coords": points}, &clusters)
	if err != nil {
		log.Printf("ML hotspot error: %v", err)
		return []Cluster{}
	}
	if clusters == nil {
		clusters = []Cluster{}
	}
	return clusters
}

// DetectImageTampering runs the image heuristics on uploaded media. A nil
// result means the check could not run and heuristics are treated as absent.
func (c *Client) DetectImageTampering(ctx context.Context, image []byte) *TamperCheck {
	var result TamperCheck
	err := c.post(ctx, "/tamper", map[string][]byte{"image": image}, &result)
	if err != nil {
		log.Printf("ML tamper check error: %v", err)
		return nil
	}
	if result.Verdict != database.VerdictLikelyReal && result.Verdict != database.VerdictNeedsVerification {
		log.Printf("ML tamper check returned unknown verdict %q", result.Verdict)
		return nil
	}
	return &result
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func validLabel(l database.MLLabel) bool {
	switch l {
	case database.LabelRelevant, database.LabelIrrelevant, database.LabelPanic:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
