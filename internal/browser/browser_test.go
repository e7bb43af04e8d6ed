package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 30*time.Second {
		t.Errorf("Expected timeout to be 30s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.CDPEndpoint != "" {
		t.Errorf("Expected local launch by default, got endpoint %s", opts.CDPEndpoint)
	}
}

const listingHTML = `<html><body>
<div class="item" data-id="1"><a href="/ip/1">One</a><a href="/ip/1b">Other</a></div>
<div class="item" data-id="2"><span>no link</span></div>
<div class="item" data-id="3"><a href="/ip/3">  Three  </a></div>
</body></html>`

func TestDocumentPage(t *testing.T) {
	ctx := context.Background()
	page := NewDocumentPage(map[string]string{"https://shop.test/search": listingHTML})

	t.Run("lookup before navigation fails", func(t *testing.T) {
		_, err := page.QuerySelector("div")
		assert.Error(t, err)
	})

	t.Run("unknown URL is a navigation failure", func(t *testing.T) {
		err := page.Goto(ctx, "https://shop.test/missing", time.Second)
		assert.True(t, errors.Is(err, ErrPageNotFound))
	})

	require.NoError(t, page.Goto(ctx, "https://shop.test/search", time.Second))
	assert.Equal(t, "https://shop.test/search", page.URL())

	t.Run("query all in document order", func(t *testing.T) {
		items, err := page.QuerySelectorAll("div.item")
		require.NoError(t, err)
		require.Len(t, items, 3)

		id, err := items[2].GetAttribute("data-id")
		require.NoError(t, err)
		assert.Equal(t, "3", id)
	})

	t.Run("nested query returns first match", func(t *testing.T) {
		items, _ := page.QuerySelectorAll("div.item")
		link, err := items[0].QuerySelector("a")
		require.NoError(t, err)
		require.NotNil(t, link)

		href, _ := link.GetAttribute("href")
		assert.Equal(t, "/ip/1", href)

		missing, err := items[1].QuerySelector("a")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("missing element and attribute", func(t *testing.T) {
		el, err := page.QuerySelector("h1")
		require.NoError(t, err)
		assert.Nil(t, el)

		item, _ := page.QuerySelector("div.item")
		value, err := item.GetAttribute("data-missing")
		require.NoError(t, err)
		assert.Empty(t, value)
	})

	t.Run("text content is untrimmed", func(t *testing.T) {
		el, _ := page.QuerySelector("div.item[data-id='3'] a")
		text, err := el.TextContent()
		require.NoError(t, err)
		assert.Equal(t, "  Three  ", text)
	})
}

func TestSnapshotSession(t *testing.T) {
	ctx := context.Background()
	session := NewSnapshotSession(map[string]string{"u": listingHTML})

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Goto(ctx, "u", time.Second))

	require.NoError(t, session.Close())
	assert.Equal(t, 1, session.Closes())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = session.NewPage(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
