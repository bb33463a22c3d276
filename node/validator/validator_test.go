package validator

import (
	"context"
	"testing"

	"github.com/bioimage-io/backoffice/types"
	"github.com/stretchr/testify/require"
)

func TestCommandValidatorPassed(t *testing.T) {
	script := `test "$1" = "https://example.org/rdf.yaml" && test "$2" = "--summary-path" && printf '{"name": "bioimageio.core", "source_name": "%s", "status": "passed", "details": [{"name": "weights", "status": "passed"}]}' "$1" > "$3"`
	v, err := NewCommandValidator([]string{"sh", "-c", script, "validator"})
	require.NoError(t, err)

	summary, err := v.Validate(context.Background(), "https://example.org/rdf.yaml", "")
	require.NoError(t, err)
	require.True(t, summary.Passed())
	require.Equal(t, "https://example.org/rdf.yaml", summary.SourceName)
	require.Len(t, summary.Details, 1)
}

func TestCommandValidatorCrash(t *testing.T) {
	v, err := NewCommandValidator([]string{"sh", "-c", "echo boom >&2; exit 3", "validator"})
	require.NoError(t, err)

	summary, err := v.Validate(context.Background(), "https://example.org/rdf.yaml", "pytorch_state_dict")
	require.NoError(t, err)
	require.False(t, summary.Passed())
	require.Equal(t, types.ValidationFailed, summary.Details[0].Status)
	require.Contains(t, summary.Details[0].Errors[0], "boom")
}

func TestCommandValidatorMissingBinary(t *testing.T) {
	v, err := NewCommandValidator([]string{"/nonexistent/validator"})
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "https://example.org/rdf.yaml", "")
	require.Error(t, err)

	_, err = NewCommandValidator(nil)
	require.Error(t, err)
}
