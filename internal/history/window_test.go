package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"", DefaultWindow},
		{"30s", 30},
		{"60S", 60},
		{"120s", 120},
		{" 300s ", 300},
		{"all", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWindow("90s")
	assert.Error(t, err)
}

func TestWindow_String(t *testing.T) {
	assert.Equal(t, "60s", Window(60).String())
	assert.Equal(t, "all", Window(0).String())
	assert.Equal(t, 300, Window(300).Samples())
}
