package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"ansi", "html", "text"}, Available())
	assert.True(t, IsRegistered("HTML"))

	r, err := Get(" Text ")
	require.NoError(t, err)
	assert.Equal(t, "text", r.Name())

	_, err = Get("pdf")
	assert.ErrorContains(t, err, "unknown render format")
}

func TestHTMLInternalLinks(t *testing.T) {
	r := NewHTMLRenderer()
	out, err := r.Render("Vai alla [[ Foresta ]] ora", Options{AccentColor: "#ff0000"})
	require.NoError(t, err)

	assert.Contains(t, out, `class="internal-link"`)
	assert.Contains(t, out, `data-link-title="Foresta"`)
	assert.Contains(t, out, `color: #ff0000;`)
	assert.Contains(t, out, `>Foresta</a>`)
	assert.NotContains(t, out, "[[")
}

func TestHTMLEscapesTitlesAndColors(t *testing.T) {
	r := NewHTMLRenderer()
	out, err := r.Render(`[[Tom & "Jerry"]]`, Options{AccentColor: `red;background:url(x)`})
	require.NoError(t, err)

	assert.Contains(t, out, `data-link-title="Tom &amp; &#34;Jerry&#34;"`)
	assert.Contains(t, out, "color: #3b82f6;")
}

func TestHTMLSanitizesAndHardWraps(t *testing.T) {
	r := NewHTMLRenderer()
	out, err := r.Render("riga uno\nriga due\n\n<script>alert(1)</script>\n\n[sito](https://example.com)", Options{})
	require.NoError(t, err)

	assert.Contains(t, out, "<br")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `target="_blank"`)
	assert.Contains(t, out, "noopener")
	assert.Contains(t, out, "noreferrer")
}

func TestHTMLEmptyLinkLeftAlone(t *testing.T) {
	out := InternalLinks("<p>[[  ]]</p>", "")
	assert.Equal(t, "<p>[[  ]]</p>", out)
}

func TestTextRenderer(t *testing.T) {
	r := NewTextRenderer()
	out, err := r.Render("# Titolo\n\nUn **testo** con [[Porta]].\n\n- uno\n- due", Options{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Titolo"))
	assert.Contains(t, out, "Un testo con [Porta].")
	assert.Contains(t, out, "- uno\n- due")
	assert.NotContains(t, out, "**")
}

func TestANSIRenderer(t *testing.T) {
	r := &ANSIRenderer{Style: "notty"}
	out, err := r.Render("# Sala\n\nApri la [[Porta]]", Options{Width: 40})
	require.NoError(t, err)
	assert.Contains(t, out, "Sala")
	assert.Contains(t, out, "Porta")
	assert.NotContains(t, out, "[[")
}
