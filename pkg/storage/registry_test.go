package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpart/graphpart/pkg/xerrors"
)

func TestScheme(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"/data/edges", ""},
		{"relative/path", ""},
		{"file:///data/edges", "file"},
		{"s3://bucket/prefix", "s3"},
		{"hdfs://namenode/path", "hdfs"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Scheme(tt.url), "url %q", tt.url)
	}
}

func TestRegistry_UnknownScheme(t *testing.T) {
	r := NewRegistry()

	_, err := r.NewEntityStorage("bogus://somewhere")
	require.Error(t, err)
	assert.True(t, xerrors.IsType(err, xerrors.ErrorTypeConfig))

	_, err = r.NewRelationTypeStorage("bogus://somewhere")
	assert.Error(t, err)

	_, err = r.NewEdgeStorage("bogus://somewhere")
	assert.Error(t, err)
}

func TestRegistry_Resolution(t *testing.T) {
	r := NewRegistry()

	var gotURL string
	require.NoError(t, r.RegisterEdgeStorage("mem", func(url string) (EdgeStorage, error) {
		gotURL = url
		return nil, nil
	}))

	_, err := r.NewEdgeStorage("mem://pool-a")
	require.NoError(t, err)
	assert.Equal(t, "mem://pool-a", gotURL)
}

func TestRegistry_DuplicateScheme(t *testing.T) {
	r := NewRegistry()

	factory := func(url string) (EdgeStorage, error) { return nil, nil }
	require.NoError(t, r.RegisterEdgeStorage("mem", factory))
	assert.Error(t, r.RegisterEdgeStorage("mem", factory))
}
