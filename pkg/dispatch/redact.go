// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import "regexp"

// Redaction scrubs secrets from anything that enters the event stream or
// error details. It is never applied to the payload sent to a child
// process: the transport sees real values, the audit trail does not.

// RedactedPlaceholder replaces redacted values.
const RedactedPlaceholder = "[REDACTED]"

// ArgsRedactor scrubs an argument mapping before it is stored in events.
type ArgsRedactor func(args map[string]any) map[string]any

// TextRedactor scrubs free text (stderr excerpts, stdout heads) before it
// is stored in events or error details.
type TextRedactor func(text string) string

// EventRedactor is implemented by adapters that scrub sensitive values from
// data bound for the event stream. Callers that persist call arguments or
// failure messages consult it before appending; adapters without it are
// assumed to handle no secrets.
type EventRedactor interface {
	RedactArgsForEvent(args map[string]any) map[string]any
	RedactTextForEvent(text string) string
}

// sensitiveKeyPattern matches argument keys whose values are secrets.
var sensitiveKeyPattern = regexp.MustCompile(
	`(?i)(token|secret|password|api[_-]?key|authorization|cookie|credential|private[_-]?key)`)

// textPatterns are applied in order: bearer tokens first so the generic
// assignment patterns never see them, then key=value shapes, then raw
// authorization headers.
var textPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{
		re:          regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9_\-.~+/=]+)`),
		replacement: "${1}" + RedactedPlaceholder,
	},
	{
		re:          regexp.MustCompile(`(?i)(api[_-]?key)(["'\s:=]+)(["']?)([A-Za-z0-9_\-.]+)(["']?)`),
		replacement: "${1}${2}${3}" + RedactedPlaceholder + "${5}",
	},
	{
		re:          regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)(["'\s:=]+)(["']?)([A-Za-z0-9_\-.]+)(["']?)`),
		replacement: "${1}${2}${3}" + RedactedPlaceholder + "${5}",
	},
	{
		re:          regexp.MustCompile(`(?i)(authorization:\s*)(\S+)`),
		replacement: "${1}" + RedactedPlaceholder,
	},
}

// DefaultRedactArgs replaces values under sensitive keys, recursively over
// nested maps and lists. Non-sensitive entries pass through untouched.
func DefaultRedactArgs(args map[string]any) map[string]any {
	redacted, _ := redactValue(args).(map[string]any)
	return redacted
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if sensitiveKeyPattern.MatchString(k) {
				out[k] = RedactedPlaceholder
				continue
			}
			out[k] = redactValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

// DefaultRedactText applies the compiled text patterns in order.
func DefaultRedactText(text string) string {
	for _, p := range textPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}
