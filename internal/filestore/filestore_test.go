package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())

	ctx := context.Background()
	body := "# Housing Act 1988\n\nSection 21."
	require.NoError(t, store.Save(ctx, "doc-1.md", strings.NewReader(body), int64(len(body))))

	rc, err := store.Open(ctx, "doc-1.md")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, body, string(data))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	for _, key := range []string{"", "../x", "a/b", `a\b`} {
		require.Error(t, store.Save(context.Background(), key, strings.NewReader("x"), 1), key)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local"})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{"bucket": "b"}})
	require.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "", endpointURL("", true))
	require.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	require.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	require.Equal(t, "http://x", endpointURL("http://x", true))
}
