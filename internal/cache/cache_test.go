package cache

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luminis/internal/model"
)

func strPtr(s string) *string { return &s }

func TestCache_DataStageLifecycle(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	assert.False(t, c.HasData("1"))
	_, err = c.LoadMarkdown("1")
	assert.ErrorIs(t, err, model.ErrCacheMiss)

	require.NoError(t, c.SaveArtifacts("1", Artifacts{
		Title:    "T",
		URL:      "U",
		DocBytes: []byte("raw"),
		Markdown: strPtr("body"),
	}))

	assert.True(t, c.HasData("1"))
	md, err := c.LoadMarkdown("1")
	require.NoError(t, err)
	assert.Equal(t, "body", md)
}

func TestCache_StagedPrefixInvariant(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.SaveArtifacts("1", Artifacts{Markdown: strPtr("body")}))
	assert.False(t, c.HasSummary("1"))
	assert.False(t, c.HasChannelPost("1", "console"))
	assert.False(t, c.IsPublished("1", "console"))

	require.NoError(t, c.SaveArtifacts("1", Artifacts{Summary: strPtr("S")}))
	assert.True(t, c.HasSummary("1"))
	assert.False(t, c.HasChannelPost("1", "console"))

	require.NoError(t, c.SaveArtifacts("1", Artifacts{Channel: "console", ChannelPost: strPtr("T|S|U")}))
	assert.True(t, c.HasChannelPost("1", "console"))
	assert.False(t, c.IsPublished("1", "console"))

	require.NoError(t, c.AddPublished("1", "console"))
	assert.True(t, c.IsPublished("1", "console"))
}

func TestCache_PublishedIsAppendOnly(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.AddPublished("1", "console"))
	require.NoError(t, c.AddPublished("1", "telegram"))
	require.NoError(t, c.AddPublished("1", "console")) // idempotent

	meta, err := c.loadMeta("1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"console", "telegram"}, meta.PublishedChannels)
}

func TestCache_ChannelSummaryIsolatedFromGlobal(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.SaveArtifacts("1", Artifacts{Summary: strPtr("global")}))
	assert.False(t, c.HasChannelSummary("1", "telegram"))

	require.NoError(t, c.SaveArtifacts("1", Artifacts{Channel: "telegram", ChannelSummary: strPtr("short")}))
	s, err := c.LoadChannelSummary("1", "telegram")
	require.NoError(t, err)
	assert.Equal(t, "short", s)

	g, err := c.LoadSummary("1")
	require.NoError(t, err)
	assert.Equal(t, "global", g)
}

func TestManifest_LoadStoreRoundtrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	m, err := c.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, 0, m.LastOffset)
	assert.Empty(t, m.LastSeenPIDs)

	m.LastOffset = 5
	m.Record("1")
	m.Record("2")
	require.NoError(t, c.StoreManifest(m))

	loaded, err := c.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.LastOffset)
	assert.True(t, loaded.Seen("1"))
	assert.True(t, loaded.Seen("2"))
}

func TestManifest_FIFOEviction(t *testing.T) {
	var m model.Manifest
	for i := 0; i < model.MaxSeenPIDs+10; i++ {
		m.Record("p" + strconv.Itoa(i))
	}
	assert.Len(t, m.LastSeenPIDs, model.MaxSeenPIDs)
	assert.False(t, m.Seen("p0"))
	assert.True(t, m.Seen("p"+strconv.Itoa(model.MaxSeenPIDs+9)))
}
