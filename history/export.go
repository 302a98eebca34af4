package history

import (
	"fmt"
	"strings"
)

// Export renders an item's final output in a textual format. It is a
// pure transformation of stored fields; no provider calls happen here.
// Supported formats: txt, md, srt, vtt.
func Export(item Item, format string) (string, error) {
	switch format {
	case "txt":
		return item.OutputFinal, nil
	case "md":
		return exportMarkdown(item), nil
	case "srt":
		return exportSRT(item), nil
	case "vtt":
		return exportVTT(item), nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

func exportMarkdown(item Item) string {
	if item.OutputFormat() == "markdown" {
		// Output was produced as markdown already; pass it through.
		return item.OutputFinal
	}
	return escapeMarkdown(item.OutputFinal)
}

// OutputFormat infers whether the stored output is markdown. The format
// tag itself lives on the Mode, which may have been deleted since, so
// exports treat anything non-markdown-looking as plain text.
func (item Item) OutputFormat() string {
	trimmed := strings.TrimSpace(item.OutputFinal)
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return "markdown"
	}
	return "plain"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Subtitle exports synthesize a single cue spanning the whole utterance,
// since per-segment timing is not retained.

func exportSRT(item Item) string {
	return fmt.Sprintf("1\n%s --> %s\n%s\n",
		formatTimestamp(0, ","),
		formatTimestamp(item.DurationMS, ","),
		item.OutputFinal,
	)
}

func exportVTT(item Item) string {
	return fmt.Sprintf("WEBVTT\n\n%s --> %s\n%s\n",
		formatTimestamp(0, "."),
		formatTimestamp(item.DurationMS, "."),
		item.OutputFinal,
	)
}

func formatTimestamp(ms int64, msSep string) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, frac)
}
