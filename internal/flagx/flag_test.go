package flagx

import (
	"reflect"
	"testing"
)

func TestFilterArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-d", "dsn", "-x", "junk"},
			allowed: []string{"-d"},
			want:    []string{"-d", "dsn"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=conf.json", "-d=dsn", "-z=1"},
			allowed: []string{"--config", "-d"},
			want:    []string{"--config=conf.json", "-d=dsn"},
		},
		{
			name:    "flag followed by another flag keeps no value",
			args:    []string{"-d", "-s", "secret"},
			allowed: []string{"-d"},
			want:    []string{"-d"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", "b"},
			allowed: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
