// Package notifications turns threshold violations into emergency messages
// and hands them to a transport.
//
// Pipeline: claim ledger key → compose message → send once. There is no retry:
// a failed send is logged and the caller moves on to the next violation.
package notifications

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/vitalsync/internal/alerts"
)

// Message is one composed notification.
type Message struct {
	To        string           `json:"to"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	Member    string           `json:"member"`
	Violation alerts.Violation `json:"violation"`
}

var metricLabels = map[string]string{
	alerts.MetricHeartRate:        "Heart rate",
	alerts.MetricSystolic:         "Systolic blood pressure",
	alerts.MetricDiastolic:        "Diastolic blood pressure",
	alerts.MetricOxygenSaturation: "Oxygen saturation",
}

func metricLabel(metric string) string {
	if l, ok := metricLabels[metric]; ok {
		return l
	}
	return metric
}

func kindPhrase(k alerts.Kind) string {
	if k == alerts.FallsBelowLow {
		return "below safe minimum"
	}
	return "above safe maximum"
}

// buildMessage renders the violation. The layout is fixed so recipients and
// mail filters can rely on it.
func buildMessage(to, memberName string, v alerts.Violation) Message {
	label := metricLabel(v.Metric)
	subject := fmt.Sprintf("[VitalSync] Health alert for %s: %s %s", memberName, strings.ToLower(label), kindPhrase(v.Kind))

	var b strings.Builder
	fmt.Fprintf(&b, "Health alert for %s\n\n", memberName)
	fmt.Fprintf(&b, "Metric:     %s (%s)\n", label, v.Metric)
	fmt.Fprintf(&b, "Value:      %s %s\n", formatValue(v.Value), v.Unit)
	fmt.Fprintf(&b, "Threshold:  %s %s\n", formatValue(v.Threshold), v.Unit)
	fmt.Fprintf(&b, "Condition:  %s\n", v.Kind)
	fmt.Fprintf(&b, "Recorded:   %s\n", v.CapturedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Detected:   %s\n", v.CreatedAt.UTC().Format(time.RFC3339))

	return Message{To: to, Subject: subject, Body: b.String(), Member: memberName, Violation: v}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
