package web

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesParse(t *testing.T) {
	pages, err := Pages()
	require.NoError(t, err)
	assert.Len(t, pages, len(pageNames))
	for _, name := range pageNames {
		assert.NotNil(t, pages[name].Lookup("layout"), name)
		assert.NotNil(t, pages[name].Lookup("content"), name)
	}
}

func TestErrorPageRenders(t *testing.T) {
	pages, err := Pages()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = pages[PageError].ExecuteTemplate(&buf, "layout", map[string]any{
		"Status":  404,
		"Message": "Alert not found",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Alert not found")
	assert.NotContains(t, buf.String(), "Log out")
}

func TestTemplateFuncs(t *testing.T) {
	levelClass := funcs["levelClass"].(func(int) string)
	assert.Equal(t, "level-high", levelClass(12))
	assert.Equal(t, "level-medium", levelClass(7))
	assert.Equal(t, "level-low", levelClass(3))

	active := funcs["active"].(func(*bool) bool)
	no := false
	assert.True(t, active(nil))
	assert.False(t, active(&no))
}

func TestStaticAssets(t *testing.T) {
	static, err := Static()
	require.NoError(t, err)
	_, err = fs.Stat(static, "style.css")
	assert.NoError(t, err)
}
