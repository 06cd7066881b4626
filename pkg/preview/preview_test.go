package preview

import (
	"testing"

	"orphansweep/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantID   types.FileID
		wantName string
		wantErr  bool
	}{
		{"flat layout", "appdata_oc1/preview/5/100-100.jpg", 5, "100-100.jpg", false},
		{"nested layout", "appdata_oc1/preview/a/b/c/1/2/3/4/98765/256-256-max.jpg", 98765, "256-256-max.jpg", false},
		{"non numeric parent", "appdata_oc1/preview/abc/100-100.jpg", 0, "", true},
		{"zero parent", "appdata_oc1/preview/0/100-100.jpg", 0, "", true},
		{"not jpg", "appdata_oc1/preview/5/100-100.png", 0, "", true},
		{"not preview", "files/5/100-100.jpg", 0, "", true},
		{"empty", "", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, name, err := Parse(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotPreviewPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
