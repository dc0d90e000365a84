package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"whatsapp-bot/models"
)

// maxUnwrapIterations bounds the decode loop in Parse. Agents double-encode
// JSON payloads, but nothing legitimate nests deeper than a few levels.
const maxUnwrapIterations = 5

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")
	htmlTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// Normalizer recovers one canonical message from arbitrary agent output:
// plain prose, JSON, JSON wrapped in a code fence or an "assistant:" label,
// or JSON encoded inside a JSON string. It is pure; the same input always
// yields the same result.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Parse resolves raw agent output to exactly one canonical message.
// Strings that never decode to a known shape come back as plain text,
// verbatim, so conversational failures stay visible instead of vanishing.
func (n *Normalizer) Parse(raw any) models.CanonicalMessage {
	value := raw
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	for i := 0; i < maxUnwrapIterations; i++ {
		s, ok := value.(string)
		if !ok {
			break
		}

		cleaned := strings.TrimSpace(s)
		if len(cleaned) >= len("assistant:") && strings.EqualFold(cleaned[:len("assistant:")], "assistant:") {
			cleaned = strings.TrimSpace(cleaned[len("assistant:"):])
		}
		if match := jsonFenceRe.FindStringSubmatch(cleaned); match != nil {
			cleaned = match[1]
		}

		var decoded any
		if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
			return models.TextMessage{Body: cleaned}
		}
		value = decoded
	}

	// The unwrap limit was reached with a string still in hand
	if s, ok := value.(string); ok {
		return models.TextMessage{Body: s}
	}

	mapping, ok := value.(map[string]any)
	if !ok {
		return models.TextMessage{Body: stringify(value)}
	}

	if toolName := stringValue(mapping["tool_code"]); toolName != "" {
		return normalizeTool(toolName, mapping)
	}

	if msg, ok := n.normalizeTyped(mapping); ok {
		return msg
	}

	// Upstream wraps messages in envelope objects or single-element lists
	// inconsistently; look one level down before giving up.
	for _, v := range mapping {
		switch inner := v.(type) {
		case map[string]any:
			if msg, ok := n.normalizeTyped(inner); ok {
				return msg
			}
		case []any:
			if len(inner) > 0 {
				if first, ok := inner[0].(map[string]any); ok {
					if msg, ok := n.normalizeTyped(first); ok {
						return msg
					}
				}
			}
		}
	}

	return models.TextMessage{Body: stringify(mapping)}
}

// normalizeTyped maps a structure carrying a whatsapp_type discriminator
// onto its canonical variant.
func (n *Normalizer) normalizeTyped(mapping map[string]any) (models.CanonicalMessage, bool) {
	switch stringValue(mapping["whatsapp_type"]) {
	case "text":
		return models.TextMessage{Body: stringValue(mapping["message"])}, true
	case "buttonTemplate":
		return normalizeButton(mapping), true
	case "interactive_list":
		return normalizeList(mapping), true
	}
	return nil, false
}

func normalizeTool(toolName string, mapping map[string]any) models.ToolInvocation {
	args, ok := mapping["tool_args"].(map[string]any)
	if !ok {
		args = make(map[string]any, len(mapping))
		for key, v := range mapping {
			if key != "tool_code" && key != "tool_args" {
				args[key] = v
			}
		}
	}
	return models.ToolInvocation{ToolName: toolName, Args: args}
}

func normalizeButton(mapping map[string]any) models.ButtonMessage {
	rawArgs, ok := mapping["template_args"].([]any)
	if !ok {
		// Older upstream shape nests the args under a template object
		if template, found := mapping["template"].(map[string]any); found {
			rawArgs, _ = template["template_args"].([]any)
		}
	}

	args := make([]string, 0, len(rawArgs))
	for _, arg := range rawArgs {
		args = append(args, stringValue(arg))
	}

	// The channel has exactly one working upsell template; upstream
	// template ids are not trusted for this message kind.
	return models.ButtonMessage{TemplateID: models.UpsellTemplateID, Args: args}
}

func normalizeList(mapping map[string]any) models.ListMessage {
	var header, body string
	var rawItems []any

	if nested, ok := mapping["interactiveList"].(map[string]any); ok {
		if bodyWrap, found := nested["body"].(map[string]any); found {
			body = stringValue(bodyWrap["text"])
		}
		if list, found := nested["list"].(map[string]any); found {
			header = stringValue(list["title"])
			if sections, found := list["sections"].([]any); found {
				for _, rawSection := range sections {
					if section, isMap := rawSection.(map[string]any); isMap {
						if items, hasItems := section["items"].([]any); hasItems {
							rawItems = append(rawItems, items...)
						}
					}
				}
			}
		}
	} else {
		header = stringValue(mapping["header"])
		body = stringValue(mapping["body"])
		rawItems, _ = mapping["items"].([]any)
	}

	if header == "" {
		header = models.DefaultListHeader
	}
	if body == "" {
		body = models.DefaultListBody
	}

	items := make([]models.ListItem, 0, len(rawItems))
	seen := make(map[string]bool, len(rawItems))
	for _, rawItem := range rawItems {
		itemMap, isMap := rawItem.(map[string]any)
		if !isMap {
			continue
		}
		item := models.ListItem{
			ID:          stringValue(itemMap["id"]),
			Payload:     stringValue(itemMap["payload"]),
			Title:       cleanText(stringValue(itemMap["title"]), models.ListTitleMaxLen),
			Description: cleanText(stringValue(itemMap["description"]), models.ListDescriptionMaxLen),
		}
		if item.Title == "" || item.Payload == "" {
			continue
		}
		if seen[item.Payload] {
			continue
		}
		seen[item.Payload] = true
		if item.ID == "" {
			item.ID = item.Payload
		}
		if item.Description == "" {
			item.Description = models.DefaultItemDescription
		}
		items = append(items, item)
	}

	return models.ListMessage{
		Header: cleanText(header, models.ListTitleMaxLen),
		Body:   cleanText(body, models.ListDescriptionMaxLen),
		Items:  items,
	}
}

// cleanText strips markup, collapses whitespace, and hard-truncates to
// maxLen characters. maxLen <= 0 leaves the length alone.
func cleanText(s string, maxLen int) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 {
		if runes := []rune(s); len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}
	return s
}

func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}

func stringify(value any) string {
	if data, err := json.Marshal(value); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", value)
}
