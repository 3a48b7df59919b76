package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"panel-agent/internal/ports"
)

const (
	labelSelector   = "label"
	controlSelector = `input, [role="radio"]`
	selectableRole  = "radio"
)

// findByLabelPattern filters label containers by an anchored whole-text pattern.
func (r *Resolver) findByLabelPattern(ctx context.Context, label string, _ bool) (outcome, error) {
	pattern := exactTextPattern(label)

	labels, err := r.page.QueryMatching(ctx, labelSelector, pattern)
	if err != nil {
		return outcome{}, err
	}

	return r.embeddedControls(ctx, labels, label)
}

// findByValueAttribute matches selectable inputs whose value attribute equals the label.
func (r *Resolver) findByValueAttribute(ctx context.Context, label string, _ bool) (outcome, error) {
	controls, err := r.page.Query(ctx, valueSelector(label))
	if err != nil {
		return outcome{}, err
	}

	return outcome{candidates: controls, matchedText: label}, nil
}

func (r *Resolver) findByAccessibleName(ctx context.Context, label string, _ bool) (outcome, error) {
	controls, err := r.page.QueryByRole(ctx, selectableRole, label, true)
	if err != nil {
		return outcome{}, err
	}

	return outcome{candidates: controls, matchedText: label}, nil
}

// findByTextEquality tries the nested span text first, then the label's own text.
func (r *Resolver) findByTextEquality(ctx context.Context, label string, _ bool) (outcome, error) {
	var ambiguous []ports.Element

	for _, selector := range textEqualitySelectors(label) {
		labels, err := r.page.Query(ctx, selector)
		if err != nil {
			return outcome{}, err
		}

		switch {
		case len(labels) == 1:
			return r.embeddedControls(ctx, labels, label)
		case len(labels) > 1 && ambiguous == nil:
			ambiguous = labels
		}
	}

	return outcome{candidates: ambiguous}, nil
}

// findByInPageScan runs the strict equality scan inside the document. When
// activating, the page clicks the control itself; otherwise the returned
// index is mapped back to a handle.
func (r *Resolver) findByInPageScan(ctx context.Context, label string, activate bool) (outcome, error) {
	raw, err := r.page.Evaluate(ctx, labelScanScript, map[string]any{
		"label":    label,
		"activate": activate,
	})
	if err != nil {
		return outcome{}, err
	}

	scan, err := parseScanResult(raw)
	if err != nil {
		return outcome{}, err
	}

	out := outcome{observed: scan.labels}
	if !scan.matched {
		return out, nil
	}

	out.matchedText = scan.text

	if scan.activated {
		out.activated = true

		return out, nil
	}

	labels, err := r.page.Query(ctx, labelSelector)
	if err != nil {
		return outcome{}, err
	}

	if scan.index < 0 || scan.index >= len(labels) {
		return outcome{}, fmt.Errorf("scan index %d out of range for %d labels", scan.index, len(labels))
	}

	matched, err := r.embeddedControls(ctx, labels[scan.index:scan.index+1], scan.text)
	if err != nil {
		return outcome{}, err
	}
	matched.observed = scan.labels

	return matched, nil
}

// embeddedControls maps a single label to the control inside it, or to the
// label itself when it wraps none. Several labels are passed through so the
// engine sees the ambiguity.
func (r *Resolver) embeddedControls(ctx context.Context, labels []ports.Element, text string) (outcome, error) {
	if len(labels) != 1 {
		return outcome{candidates: labels, matchedText: text}, nil
	}

	controls, err := labels[0].Query(ctx, controlSelector)
	if err != nil {
		return outcome{}, err
	}

	if len(controls) == 0 {
		return outcome{candidates: labels, matchedText: text}, nil
	}

	return outcome{candidates: controls[:1], matchedText: text}, nil
}

func exactTextPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*` + regexp.QuoteMeta(strings.TrimSpace(label)) + `\s*$`)
}

func valueSelector(label string) string {
	value := cssString(label)

	return fmt.Sprintf(`input[type="radio"][value=%s], input[type="checkbox"][value=%s]`, value, value)
}

func textEqualitySelectors(label string) []string {
	text := cssString(strings.TrimSpace(label))

	return []string{
		fmt.Sprintf(`label:has(span:text-is(%s))`, text),
		fmt.Sprintf(`label:text-is(%s)`, text),
	}
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	var b strings.Builder

	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')

	return b.String()
}

type scanResult struct {
	matched   bool
	index     int
	text      string
	activated bool
	labels    []string
}

func parseScanResult(raw any) (scanResult, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return scanResult{}, fmt.Errorf("unexpected scan result type %T", raw)
	}

	res := scanResult{
		matched:   getBool(m, "matched"),
		index:     getInt(m, "index"),
		text:      getString(m, "text"),
		activated: getBool(m, "activated"),
	}

	if list, ok := m["labels"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				res.labels = append(res.labels, s)
			}
		}
	}

	return res, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}

	return -1
}
