package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njmorgan/loom/pkg/types"
)

const samplePage = `<html>
<head><title>  Acme   Widget </title><style>body{color:red}</style></head>
<body>
<script>trackEverything()</script>
<h1>The Widget</h1>
<p>It costs &amp; weighs very little.</p>
</body></html>`

func TestWebScrapeTool_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool := NewWebScrapeTool(nil)
	params := map[string]types.Value{"url": types.String(srv.URL)}
	require.NoError(t, tool.Validate(params))

	result, err := tool.Invoke(context.Background(), params)
	require.NoError(t, err)

	title, _ := result.At("title")
	s, _ := title.AsString()
	assert.Equal(t, "Acme Widget", s)

	content, _ := result.At("content")
	text, _ := content.AsString()
	assert.Contains(t, text, "The Widget")
	assert.Contains(t, text, "costs & weighs")
	assert.NotContains(t, text, "trackEverything")
	assert.NotContains(t, text, "color:red")

	status, _ := result.At("status")
	n, _ := status.AsNumber()
	assert.Equal(t, float64(200), n)
}

func TestWebScrapeTool_ValidateRejectsBadURLs(t *testing.T) {
	tool := NewWebScrapeTool(nil)

	assert.Error(t, tool.Validate(map[string]types.Value{}))
	assert.Error(t, tool.Validate(map[string]types.Value{"url": types.String("ftp://host/file")}))
	assert.NoError(t, tool.Validate(map[string]types.Value{"url": types.String("https://ok.example")}))
}

func TestWebScrapeTool_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tool := NewWebScrapeTool(nil)
	_, err := tool.Invoke(context.Background(), map[string]types.Value{"url": types.String(srv.URL)})
	assert.ErrorContains(t, err, "status 404")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b", stripHTML("<p>a</p> <p>b</p>"))
	assert.Equal(t, `say "hi"`, stripHTML("say &quot;hi&quot;"))
}
