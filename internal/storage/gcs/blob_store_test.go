package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{})
	require.Error(t, err)
}

func TestObjectNameAppliesPrefix(t *testing.T) {
	t.Parallel()

	s, err := New(&storage.Client{}, Config{Bucket: "datasheets", Prefix: "/catalog/"})
	require.NoError(t, err)

	name, err := s.objectName("/industrial.json")
	require.NoError(t, err)
	require.Equal(t, "catalog/industrial.json", name)

	_, err = s.objectName("  ")
	require.Error(t, err)

	bare, err := New(&storage.Client{}, Config{Bucket: "datasheets"})
	require.NoError(t, err)
	name, err = bare.objectName("industrial.json")
	require.NoError(t, err)
	require.Equal(t, "industrial.json", name)
}
