package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconerrors "vocab-reconciler/internal/common/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Uppland", "uppland"},
		{"strips diacritics", "Härnösand", "harnosand"},
		{"collapses whitespace", "  lake   Mälaren \t valley ", "lake malaren valley"},
		{"mixed", "  CAFÉ  Ödeshög ", "cafe odeshog"},
		{"already clean", "pollen analysis", "pollen analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	first, err := Normalize("Östergötland  SLÄTTEN")
	require.NoError(t, err)
	second, err := Normalize("Östergötland  SLÄTTEN")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_EmptyAfterNormalization(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n "} {
		_, err := Normalize(input)
		require.Error(t, err)
		assert.True(t, reconerrors.HasCode(err, reconerrors.ErrCodeEmptyQuery))
	}
}
