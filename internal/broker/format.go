package broker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rockerboo/lsp-broker/utils"
)

// escapeCompletionField replaces the three sigils that would otherwise
// collide with the editor command's own field/item separators. The
// original implementation's escape set (`:`, `|`, `$`) is followed exactly
// rather than the narrower two-character gloss in casual descriptions of
// this format.
var escapeCompletionField = strings.NewReplacer(
	":", `\$c`,
	"|", `\$c`,
	"$", `\$c`,
).Replace

// formatResult dispatches to the formatter for pending's LSP method and
// returns the editor-script command to emit, or "" to emit nothing.
func formatResult(pending PendingRequest, raw json.RawMessage) string {
	switch pending.LSPMethod {
	case "textDocument/completion":
		return formatCompletion(pending, raw)
	case "textDocument/hover":
		return formatHover(raw)
	case "textDocument/definition":
		return formatDefinition(raw)
	default:
		return ""
	}
}

type completionItem struct {
	Label      string `json:"label"`
	Detail     string `json:"detail"`
	InsertText string `json:"insertText"`
}

type completionPosition struct {
	Position struct {
		Line      int `json:"line"`
		Character int `json:"character"`
	} `json:"position"`
	PrefixLength int `json:"prefix_length"`
}

func formatCompletion(pending PendingRequest, raw json.RawMessage) string {
	items, ok := decodeCompletionItems(raw)
	if !ok || len(items) == 0 {
		return ""
	}

	var reqCtx completionPosition
	_ = json.Unmarshal(pending.OriginalParams, &reqCtx)

	line := reqCtx.Position.Line + 1
	col := reqCtx.Position.Character + 1 - reqCtx.PrefixLength

	rendered := make([]string, 0, len(items))
	for _, item := range items {
		insert := item.InsertText
		if insert == "" {
			insert = item.Label
		}
		rendered = append(rendered, fmt.Sprintf("%s|%s|%s",
			escapeCompletionField(item.Label),
			escapeCompletionField(item.Detail),
			escapeCompletionField(insert),
		))
	}

	return fmt.Sprintf("set %%{buffer=%s} lsp_completions %%§%d.%d@%d:%s§",
		pending.EditorMeta.BufferPath, line, col, pending.EditorMeta.DocumentVersion, strings.Join(rendered, ":"))
}

// decodeCompletionItems accepts both CompletionResponse shapes: a bare
// array of items, or a CompletionList object with an `items` field.
func decodeCompletionItems(raw json.RawMessage) ([]completionItem, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false
	}

	var list []completionItem
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}

	var wrapped struct {
		Items []completionItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Items, true
	}
	return nil, false
}

func formatHover(raw json.RawMessage) string {
	var result struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return ""
	}

	text := flattenHoverContents(result.Contents)
	if text == "" {
		return ""
	}
	return fmt.Sprintf("info %%§%s§", text)
}

// flattenHoverContents collapses any of HoverContents' three shapes —
// scalar MarkedString, array of MarkedString, or MarkupContent — into
// plaintext, joining array elements with newlines.
func flattenHoverContents(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err == nil {
			parts := make([]string, 0, len(elems))
			for _, e := range elems {
				if flat := flattenHoverContents(e); flat != "" {
					parts = append(parts, flat)
				}
			}
			return strings.Join(parts, "\n")
		}
	case '{':
		// LanguageString{language,value} or MarkupContent{kind,value}
		var obj struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			return obj.Value
		}
	}
	return ""
}

type lspRange struct {
	Start struct {
		Line      int `json:"line"`
		Character int `json:"character"`
	} `json:"start"`
}

type location struct {
	Uri   string   `json:"uri"`
	Range lspRange `json:"range"`
}

// formatDefinition accepts GotoDefinitionResponse's three shapes: a single
// Location, an array (first element wins), or null/empty (no command).
func formatDefinition(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var loc location
	if trimmed[0] == '[' {
		var locs []location
		if err := json.Unmarshal(raw, &locs); err != nil || len(locs) == 0 {
			return ""
		}
		loc = locs[0]
	} else {
		if err := json.Unmarshal(raw, &loc); err != nil {
			return ""
		}
	}

	path := utils.URIToFilePath(loc.Uri)
	return fmt.Sprintf("edit %%§%s§ %d %d", path, loc.Range.Start.Line+1, loc.Range.Start.Character+1)
}
