package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	open, inodes, blocks int
}

func (f fakeSource) OpenFileCount() int { return f.open }
func (f fakeSource) InodesInUse() int   { return f.inodes }
func (f fakeSource) BlocksInUse() int   { return f.blocks }

func TestGaugesReflectSource(t *testing.T) {
	src := fakeSource{open: 3, inodes: 5, blocks: 7}
	m := New(src)
	m.SetActiveSessions(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tfs_open_files 3")
	assert.Contains(t, string(body), "tfs_inodes_in_use 5")
	assert.Contains(t, string(body), "tfs_blocks_in_use 7")
	assert.Contains(t, string(body), "tfs_active_sessions 2")
}

func TestServeDisabledWithBlankAddr(t *testing.T) {
	m := New(fakeSource{})
	err := Serve(context.Background(), "", m)
	assert.NoError(t, err)
}
