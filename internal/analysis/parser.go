package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Alias1177/Aura/models"
)

// State tells which path Parse took
type State int

const (
	StateNoBlock State = iota
	StateBlockValid
	StateBlockInvalid
)

func (s State) String() string {
	switch s {
	case StateNoBlock:
		return "NO_BLOCK_FOUND"
	case StateBlockValid:
		return "BLOCK_FOUND_VALID"
	case StateBlockInvalid:
		return "BLOCK_FOUND_INVALID"
	}
	return "UNKNOWN"
}

// Result is the structured view of a model response
type Result struct {
	State       State
	Payload     models.AnalysisPayload
	Explanation string
}

const (
	noExplanation     = "No additional explanation was provided."
	emptyResponse     = "The AI model returned an empty response."
	unstructuredNote  = "Structured analysis data was unavailable, showing the model's raw response instead."
	fallbackRRRatio   = "1:2.0"
	fallbackConfLevel = "N/A"
)

var requiredKeys = []string{"signal", "confidence", "entry", "tp1", "tp2", "tp3", "sl", "rr_ratio"}

// A fenced block holding one JSON object, with optional language tag.
var blockPattern = regexp.MustCompile("(?s)^(.*?)```[a-zA-Z]*[ \\t]*\\r?\\n?\\s*(\\{.*?\\})\\s*```(.*)$")

// Section titles the model tends to repeat before its prose.
var headerPattern = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*(?:explanation|analysis|reasoning|rationale|summary|detailed analysis|market analysis)\s*:?\s*(?:\*\*|__)?\s*:?[ \t]*(?:\r?\n|$)`)

// Parse extracts the analysis payload from a free-form model response.
// It never fails: when no usable block is found the payload is derived
// from fallbackPrice and the raw text becomes the explanation.
func Parse(raw string, fallbackPrice float64) Result {
	m := blockPattern.FindStringSubmatch(raw)
	if m == nil {
		return fallback(StateNoBlock, raw, fallbackPrice)
	}

	before, block, after := m[1], m[2], m[3]
	payload, err := decodePayload(block)
	if err != nil {
		return fallback(StateBlockInvalid, raw, fallbackPrice)
	}

	explanation := stripHeaders(after)
	if explanation == "" {
		explanation = stripHeaders(before)
	}
	if explanation == "" {
		explanation = noExplanation
	}

	return Result{State: StateBlockValid, Payload: payload, Explanation: explanation}
}

// FallbackPayload builds the neutral payload used when the model output is unusable
func FallbackPayload(price float64) models.AnalysisPayload {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		price = 0
	}
	return models.AnalysisPayload{
		Signal:     models.SignalNeutral,
		Confidence: fallbackConfLevel,
		Entry:      price,
		TP1:        roundPrice(price * 1.005),
		TP2:        roundPrice(price * 1.01),
		TP3:        roundPrice(price * 1.02),
		SL:         roundPrice(price * 0.99),
		RRRatio:    fallbackRRRatio,
	}
}

func fallback(state State, raw string, fallbackPrice float64) Result {
	body := strings.TrimSpace(raw)
	if body == "" {
		body = emptyResponse
	}
	return Result{
		State:       state,
		Payload:     FallbackPayload(fallbackPrice),
		Explanation: unstructuredNote + "\n\n" + body,
	}
}

func decodePayload(block string) (models.AnalysisPayload, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(block))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return models.AnalysisPayload{}, fmt.Errorf("decoding block: %w", err)
	}

	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return models.AnalysisPayload{}, fmt.Errorf("missing key %q", key)
		}
	}

	var p models.AnalysisPayload
	signal, err := text(fields["signal"])
	if err != nil {
		return p, fmt.Errorf("signal: %w", err)
	}
	p.Signal = models.Signal(strings.ToUpper(strings.TrimSpace(signal)))
	if !p.Signal.Valid() {
		return p, fmt.Errorf("unknown signal %q", signal)
	}

	if p.Confidence, err = text(fields["confidence"]); err != nil {
		return p, fmt.Errorf("confidence: %w", err)
	}

	prices := []struct {
		key string
		dst *float64
	}{
		{"entry", &p.Entry}, {"tp1", &p.TP1}, {"tp2", &p.TP2}, {"tp3", &p.TP3}, {"sl", &p.SL},
	}
	for _, f := range prices {
		v, err := price(fields[f.key])
		if err != nil {
			return p, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}

	rr, err := text(fields["rr_ratio"])
	if err != nil {
		return p, fmt.Errorf("rr_ratio: %w", err)
	}
	if _, numErr := strconv.ParseFloat(rr, 64); numErr == nil {
		rr = "1:" + rr
	}
	p.RRRatio = rr

	return p, nil
}

// text accepts a non-empty JSON string or a number and returns its textual form
func text(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("value is null")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return "", errors.New("value is empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", raw)
}

// price accepts a JSON number or a numeric string; negative values are rejected
func price(raw json.RawMessage) (float64, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, errors.New("value is null")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		s, textErr := text(raw)
		if textErr != nil {
			return 0, textErr
		}
		s = strings.TrimPrefix(strings.ReplaceAll(s, ",", ""), "$")
		if v, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid price %v", v)
	}
	return v, nil
}

func stripHeaders(s string) string {
	s = strings.TrimSpace(s)
	for {
		loc := headerPattern.FindStringIndex(s)
		if loc == nil || loc[1] == 0 {
			return s
		}
		s = strings.TrimSpace(s[loc[1]:])
	}
}

// roundPrice keeps two decimals for regular prices and more for sub-dollar assets
func roundPrice(v float64) float64 {
	scale := 100.0
	if v != 0 && math.Abs(v) < 1 {
		scale = 1e6
	}
	return math.Round(v*scale) / scale
}
