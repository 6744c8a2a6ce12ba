package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/pkg/version"
)

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, version.GetVersion())
	assert.Contains(t, version.String(), version.GetVersion())
}

func TestIsCompatibleSchema(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		want    bool
		wantErr bool
	}{
		{"empty is current", "", true, false},
		{"current", version.SchemaVersion, true, false},
		{"minor bump", "1.4.0", true, false},
		{"short form", "1", true, false},
		{"next major", "2.0.0", false, false},
		{"old major", "0.9.0", false, false},
		{"garbage", "not-a-version", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := version.IsCompatibleSchema(tt.schema)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
