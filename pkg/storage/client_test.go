package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "s3://audit", want: Location{Scheme: "s3", Bucket: "audit"}},
		{raw: "s3://audit/remediator/", want: Location{Scheme: "s3", Bucket: "audit", Prefix: "remediator"}},
		{raw: "gs://ops-bucket/a/b", want: Location{Scheme: "gs", Bucket: "ops-bucket", Prefix: "a/b"}},
		{raw: "https://example.com/x", wantErr: true},
		{raw: "s3:///no-bucket", wantErr: true},
		{raw: "audit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "journal.json", Location{Bucket: "b"}.Key("journal.json"))
	assert.Equal(t, "p/q/journal.json", Location{Bucket: "b", Prefix: "p/q"}.Key("journal.json"))
	assert.Equal(t, "gs://b/p", Location{Scheme: "gs", Bucket: "b", Prefix: "p"}.String())
	assert.Equal(t, "s3://b", Location{Scheme: "s3", Bucket: "b"}.String())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("journal.json"))
	assert.Equal(t, "application/yaml", contentType("journal.yaml"))
	assert.Equal(t, "application/octet-stream", contentType("journal"))
}

func TestNewArchiverRejectsUnknownScheme(t *testing.T) {
	_, err := NewArchiver(context.Background(), "ftp://bucket/x", "us-east-1")
	assert.ErrorContains(t, err, "unsupported scheme")
}
