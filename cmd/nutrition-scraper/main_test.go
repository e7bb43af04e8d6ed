package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = io.Discard
	a.Reader = strings.NewReader(stdin)

	err := a.Run(append([]string{"nutrition-scraper"}, args...))
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := runCLI(t, "Amount per serving\n2 cup\nSodium 150 mg\nTotalFat 5g\n", "parse")
	require.NoError(t, err)

	var result parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "2", result.Servings.ServingSize)
	assert.Equal(t, "cup", result.Servings.ServingSizeUnit)
	require.Len(t, result.Nutrients, 2)
	assert.Equal(t, "TotalFat", result.Nutrients[1].Name)

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "panel.txt")
		require.NoError(t, os.WriteFile(path, []byte("Calories 150"), 0o644))

		out, err := runCLI(t, "", "parse", path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"Servings":{},"Nutrients":[{"Name":"Calories","Amount":150,"Unit":null}]}`, out)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "", "parse", filepath.Join(t.TempDir(), "missing.txt"))
		assert.Error(t, err)
	})
}

func TestResolveCommand(t *testing.T) {
	out, err := runCLI(t, "", "resolve",
		"https://www.walmart.com/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F1&x=1",
		"https://www.walmart.com/sp/track?x=1",
		"https://www.walmart.com/sp/track?rd=https%3A%2F%2Fwww.walmart.com%2Fip%2F2",
	)
	require.NoError(t, err)
	assert.Equal(t, "https://www.walmart.com/ip/1\nhttps://www.walmart.com/ip/2\n", out)

	_, err = runCLI(t, "", "resolve")
	assert.Error(t, err)
}

func TestExtractCommand(t *testing.T) {
	chdir(t, t.TempDir())

	page := `<html><head><script type="application/ld+json">{"name":"Milk","gtin13":"42"}</script></head>
<body><h1 class="prod-ProductTitle prod-productTitle-buyBox font-bold">Whole Milk</h1></body></html>`
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))
	outDir := filepath.Join(t.TempDir(), "Walmart")

	out, err := runCLI(t, "", "extract", "--html", path, "--url", "https://www.walmart.com/ip/7", "--output-dir", outDir)
	require.NoError(t, err)

	var product map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &product))
	assert.Equal(t, "Whole Milk", product["Name"])
	assert.Equal(t, "42", product["UPC"])
	assert.Equal(t, "https://www.walmart.com/ip/7", product["URL"])

	assert.FileExists(t, filepath.Join(outDir, "Whole_Milk.json"))
}
