package slack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// BlocksText extracts the readable text from a Block Kit "blocks" array.
// Header text, section text and section fields are kept in order; other
// block types carry no text worth relaying and are skipped.
func BlocksText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var blocks slack.Blocks
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("failed to parse blocks: %w", err)
	}

	var parts []string
	add := func(obj *slack.TextBlockObject) {
		if obj != nil && strings.TrimSpace(obj.Text) != "" {
			parts = append(parts, obj.Text)
		}
	}

	for _, block := range blocks.BlockSet {
		switch b := block.(type) {
		case *slack.HeaderBlock:
			add(b.Text)
		case *slack.SectionBlock:
			add(b.Text)
			for _, field := range b.Fields {
				add(field)
			}
		}
	}

	return strings.Join(parts, "\n"), nil
}
