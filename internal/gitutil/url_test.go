package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePullRequestURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantID    int
		wantErr   bool
	}{
		{
			name:      "valid HTTPS URL",
			url:       "https://github.com/acme/widgets/pull/123",
			wantOwner: "acme",
			wantRepo:  "widgets",
			wantID:    123,
		},
		{
			name:      "URL without scheme",
			url:       "github.com/acme/widgets/pull/456",
			wantOwner: "acme",
			wantRepo:  "widgets",
			wantID:    456,
		},
		{
			name:      "trailing slash",
			url:       "https://github.com/acme/widgets/pull/789/",
			wantOwner: "acme",
			wantRepo:  "widgets",
			wantID:    789,
		},
		{
			name:    "non-numeric PR id",
			url:     "https://github.com/acme/widgets/pull/abc",
			wantErr: true,
		},
		{
			name:    "issues URL",
			url:     "https://github.com/acme/widgets/issues/123",
			wantErr: true,
		},
		{
			name:    "extra path segments",
			url:     "https://github.com/acme/widgets/pull/123/files",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, id, err := ParsePullRequestURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
