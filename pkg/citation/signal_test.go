package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSignal(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"see", "see"},
		{"See", "see"},
		{"<i>See</i>", "see"},
		{"see also", "seealso"},
		{"See generally", "seegenerally"},
		{"see, e.g.,", "seeeg"},
		{"cf.", "cf"},
		{"But see", "butsee"},
		{"but cf.", "butcf"},
		{"accord", "accord"},
		{"contra", "contra"},
		{"compare", "compare"},
		{"e.g.,", "eg"},
		{"", "none"},
		{"as quoted in", "none"},
		{"seemingly", "none"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSignal(tt.prefix))
		})
	}
}
