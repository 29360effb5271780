// Package transcript turns uploaded call logs into canonical messages and
// renders them back into the indexed text blocks sent to the model.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/klauspost/compress/gzip"
)

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 16 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// FieldError reports a required field that is absent from an upload, with the
// JSON path of the offending value.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", models.ErrSchemaViolation, e.Path, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return models.ErrSchemaViolation
}

// Transcript is the normalized form of an upload.
type Transcript struct {
	Messages       []models.Message
	AgentFirstName string
	AgentLastName  string
	OrgID          string
	SessionID      string
}

// AgentName joins the agent's first and last names.
func (t *Transcript) AgentName() string {
	return strings.TrimSpace(t.AgentFirstName + " " + t.AgentLastName)
}

// upload mirrors the exported call-log layout. Every level is optional and
// defaults to empty.
type upload struct {
	Data struct {
		Context struct {
			Variables struct {
				ConversationHistory []rawMessage `json:"review_conversation_history"`
				AgentFirstName      string       `json:"agent_first_name"`
				AgentLastName       string       `json:"agent_last_name"`
				OrgID               string       `json:"org_id"`
				SessionID           string       `json:"session_id"`
			} `json:"variables"`
		} `json:"context"`
	} `json:"data"`
}

const historyPath = "data.context.variables.review_conversation_history"

type rawMessage struct {
	MongoID json.RawMessage `json:"_id"`
	ID      json.RawMessage `json:"id"`
	Role    *string         `json:"role"`
	Content *string         `json:"content"`
}

// Normalize parses an upload into a Transcript. The payload may be a single
// JSON document, newline-delimited JSON (the last well-formed line wins), or
// either of those gzip-compressed.
func Normalize(raw []byte) (*Transcript, error) {
	raw, err := decompress(raw)
	if err != nil {
		return nil, err
	}

	doc, err := selectDocument(raw)
	if err != nil {
		return nil, err
	}

	var u upload
	if err := json.Unmarshal(doc, &u); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			path := typeErr.Field
			if path == "" {
				path = "$"
			}
			return nil, &FieldError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
		}
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}

	vars := u.Data.Context.Variables
	messages := make([]models.Message, 0, len(vars.ConversationHistory))

	for i, rm := range vars.ConversationHistory {
		m, err := rm.canonical(fmt.Sprintf("%s[%d]", historyPath, i))
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return &Transcript{
		Messages:       messages,
		AgentFirstName: vars.AgentFirstName,
		AgentLastName:  vars.AgentLastName,
		OrgID:          vars.OrgID,
		SessionID:      vars.SessionID,
	}, nil
}

func (rm rawMessage) canonical(path string) (models.Message, error) {
	id, err := rm.id(path)
	if err != nil {
		return models.Message{}, err
	}

	if rm.Role == nil {
		return models.Message{}, &FieldError{Path: path + ".role", Reason: "required"}
	}
	role, err := ParseRole(*rm.Role)
	if err != nil {
		return models.Message{}, &FieldError{Path: path + ".role", Reason: err.Error()}
	}

	if rm.Content == nil {
		return models.Message{}, &FieldError{Path: path + ".content", Reason: "required"}
	}

	// content is kept verbatim, including bracketed DTMF or spelling tokens
	return models.Message{ID: id, Role: role, Content: *rm.Content}, nil
}

func (rm rawMessage) id(path string) (string, error) {
	raw, field := rm.MongoID, "_id"
	if isAbsent(raw) {
		raw, field = rm.ID, "id"
	}
	if isAbsent(raw) {
		return "", &FieldError{Path: path + "._id", Reason: "required"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	// Some exports use numeric ids or the extended-JSON {"$oid": "..."} form.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil && oid.OID != "" {
		return oid.OID, nil
	}

	return "", &FieldError{Path: path + "." + field, Reason: "expected string id"}
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ParseRole maps the role spellings found in exported logs onto canonical
// roles. Anything that is not a known agent spelling is the other side of
// the call; only a blank role is rejected.
func ParseRole(s string) (models.Role, error) {
	switch role := strings.ToLower(strings.TrimSpace(s)); role {
	case "assistant", "agent", "bot", "ai":
		return models.RoleAgent, nil
	case "user", "human", "counterpart", "customer", "callee", "ivr":
		return models.RoleCounterpart, nil
	case "":
		return "", errors.New("role is blank")
	default:
		slog.Warn("Unknown transcript role, treating as counterpart", "role", s)
		return models.RoleCounterpart, nil
	}
}

func decompress(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, gzipMagic) {
		return raw, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", models.ErrMalformedInput, err)
	}
	defer zr.Close() //nolint:errcheck

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", models.ErrMalformedInput, err)
	}
	return data, nil
}

// selectDocument returns raw when it is a single JSON value, otherwise the last
// line that parses as JSON.
func selectDocument(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed, nil
	}

	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, bytes.Clone(sc.Bytes()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && json.Valid(line) {
			return line, nil
		}
	}

	return nil, fmt.Errorf("%w: neither a JSON document nor NDJSON with a parseable line", models.ErrMalformedInput)
}
