package llm

import (
	"errors"
	"testing"
)

func TestCheckFinish(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		json   bool
		reason string
		want   error
	}{
		{name: "json stop", json: true, reason: "stop"},
		{name: "json length", json: true, reason: FinishLength, want: ErrTruncated},
		{name: "prose length", reason: FinishLength},
		{name: "json unknown", json: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := CheckFinish(CompletionRequest{JSONMode: tc.json}, tc.reason)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}
