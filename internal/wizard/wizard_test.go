package wizard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditTypeOptions(t *testing.T) {
	opts := AuditTypeOptions()
	require.Len(t, opts, len(models.AllAuditTypes()))

	for i, t2 := range models.AllAuditTypes() {
		assert.Equal(t, t2, opts[i].Value)
		assert.NotEmpty(t, opts[i].Key)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(strings.NewReader("")))
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
