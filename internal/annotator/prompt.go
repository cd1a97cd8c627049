package annotator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"fjacquet/ledgerflow/internal/models"
)

// BuildPrompt renders the request for one transaction. Labels are listed in
// configured order.
func BuildPrompt(tx models.Transaction, labels []string) string {
	var sb strings.Builder
	sb.WriteString("You are a bookkeeping assistant. Assign the transaction below to exactly one category.\n\n")
	sb.WriteString("Transaction:\n")
	fmt.Fprintf(&sb, "- time: %s\n", tx.FormattedTimestamp())
	fmt.Fprintf(&sb, "- direction: %s\n", tx.Direction)
	fmt.Fprintf(&sb, "- amount: %s\n", tx.FormattedAmount())
	fmt.Fprintf(&sb, "- counterparty: %s\n", tx.Counterparty)
	fmt.Fprintf(&sb, "- description: %s\n\n", tx.RawDescription)
	sb.WriteString("Categories:\n")
	for _, label := range labels {
		fmt.Fprintf(&sb, "- %s\n", label)
	}
	sb.WriteString("\nAnswer with a single JSON object and nothing else:\n")
	sb.WriteString(`{"category": "<one of the categories above>", "reason": "<short reason>"}`)
	sb.WriteString("\n")
	return sb.String()
}

// Answer is what the model said, before label matching.
type Answer struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

type rawAnswer struct {
	Category     string `json:"category"`
	CategoryName string `json:"category_name"`
	Reason       string `json:"reason"`
}

var jsonObject = regexp.MustCompile(`(?s)\{.*?\}`)

// ParseAnswer extracts the label from a model reply. The first JSON object
// that carries a category wins; otherwise the trimmed text is the label.
func ParseAnswer(reply string) Answer {
	for _, candidate := range jsonObject.FindAllString(reply, -1) {
		var raw rawAnswer
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		label := raw.Category
		if label == "" {
			label = raw.CategoryName
		}
		if strings.TrimSpace(label) != "" {
			return Answer{Category: strings.TrimSpace(label), Reason: strings.TrimSpace(raw.Reason)}
		}
	}

	text := strings.TrimSpace(reply)
	text = strings.Trim(text, "`\"' ")
	return Answer{Category: strings.TrimSpace(text)}
}
