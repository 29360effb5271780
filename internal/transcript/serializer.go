package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/callaudit/callaudit/internal/models"
)

// Serialize renders messages as indexed blocks, one per line group. offset is
// added to every rendered index so that a slice of a longer conversation
// keeps its global positions. Content is written verbatim.
func Serialize(messages []models.Message, offset int) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("<message>")
		sb.WriteString("<index>")
		sb.WriteString(strconv.Itoa(offset + i))
		sb.WriteString("</index>")
		sb.WriteString("<id>")
		sb.WriteString(m.ID)
		sb.WriteString("</id>")
		sb.WriteString("<role>")
		sb.WriteString(string(m.Role))
		sb.WriteString("</role>")
		sb.WriteString("<content>")
		sb.WriteString(m.Content)
		sb.WriteString("</content>")
		sb.WriteString("</message>")
	}
	return sb.String()
}

// IndexedMessage is a message recovered from serialized text together with
// the index it was rendered with.
type IndexedMessage struct {
	Index int
	models.Message
}

// (?s) lets content span newlines; the lazy content group stops at the first
// closing tag that ends the block.
var blockPattern = regexp.MustCompile(`(?s)<message><index>(-?\d+)</index><id>(.*?)</id><role>(.*?)</role><content>(.*?)</content></message>`)

// ParseSerialized reads back the blocks produced by Serialize.
func ParseSerialized(text string) ([]IndexedMessage, error) {
	matches := blockPattern.FindAllStringSubmatch(text, -1)
	out := make([]IndexedMessage, 0, len(matches))

	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad index %q: %w", m[1], err)
		}
		out = append(out, IndexedMessage{
			Index: idx,
			Message: models.Message{
				ID:      m[2],
				Role:    models.Role(m[3]),
				Content: m[4],
			},
		})
	}
	return out, nil
}
