package logging

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// Keys listed here are shown first on INFO lines.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldState,
	FieldReason,
	"question",
	"overall",
	"best_overall",
	"frames",
	"remaining",
	"status",
	FieldImpact,
	FieldErrorHint,
	"error",
}

// Keys never shown on INFO lines; they stay available in JSON output.
var debugOnlyKeys = map[string]struct{}{
	FieldSessionID:     {},
	FieldCorrelationID: {},
	"frame_bytes":      {},
	"audio_bytes":      {},
	"sequence":         {},
}

var labelCaser = cases.Title(language.English)

var labelOverrides = map[string]string{
	"overall":      "Overall",
	"best_overall": "Best Overall",
	"url":          "URL",
	"http_status":  "HTTP Status",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
func selectInfoFields(attrs []kv, limit int) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, limit)

	add := func(idx int) {
		used[idx] = true
		result = append(result, infoField{
			label: displayLabel(attrs[idx].key),
			value: formatInfoValue(attrs[idx].value),
		})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
			}
		}
	}
	for idx, attr := range attrs {
		if used[idx] {
			continue
		}
		if _, skip := debugOnlyKeys[attr.key]; skip {
			used[idx] = true
			continue
		}
		add(idx)
	}

	if limit <= 0 || len(result) <= limit {
		return result, 0
	}
	return result[:limit], len(result) - limit
}

func formatInfoValue(v slog.Value) string {
	value := attrString(v)
	if len(value) > 160 {
		return value[:157] + "..."
	}
	return value
}

func displayLabel(key string) string {
	if label, ok := labelOverrides[key]; ok {
		return label
	}
	key = strings.ReplaceAll(key, ".", " ")
	return labelCaser.String(strings.ReplaceAll(key, "_", " "))
}
