package gitops

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/types"
)

func TestSanitizeCommitMessageStripsForgedTrailers(t *testing.T) {
	message := "Fix the bug\n\nActual-Author: x@y.z\nCommitted-Via: something\nmore detail"
	sanitized := SanitizeCommitMessage(message)

	assert.NotContains(t, sanitized, "x@y.z")
	assert.NotContains(t, sanitized, "Committed-Via")
	assert.Contains(t, sanitized, "Fix the bug")
	assert.Contains(t, sanitized, "more detail")
}

func TestAttributedMessageHasExactlyOneAuthorTrailer(t *testing.T) {
	message := "Fix the bug\nActual-Author: x@y.z"
	attributed := AttributedMessage(message, "alice@example.com")

	assert.Equal(t, 1, strings.Count(attributed, "Actual-Author:"))
	assert.Contains(t, attributed, "Actual-Author: alice@example.com")
	assert.NotContains(t, attributed, "x@y.z")
	assert.Contains(t, attributed, "Committed-Via: CIDX API")
}

func TestValidateAuthor(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		inputName string
		wantName  string
		wantErr   bool
	}{
		{"valid with name", "alice@example.com", "Alice Smith", "Alice Smith", false},
		{"derived name with dot rejected", "bob.jones@example.com", "", "", true},
		{"simple derived name", "bob@example.com", "", "bob", false},
		{"bad email", "not-an-email", "Alice", "", true},
		{"missing tld", "alice@localhost", "Alice", "", true},
		{"name with injection", "alice@example.com", "alice; rm -rf /", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := validateAuthor(tt.email, tt.inputName)
			if tt.wantErr {
				var validation *types.ValidationError
				assert.ErrorAs(t, err, &validation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
