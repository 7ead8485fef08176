package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("Extracts Page Structure", func(t *testing.T) {
		page := `<!doctype html>
<html>
<head>
  <title> Consulta de Valores </title>
  <meta name="description" content="Consulte seus valores a receber">
</head>
<body>
  <form action="/submit">
    <input type="text" name="nome">
    <input type="password" name="senha">
  </form>
  <a href="https://other.example/promo">promo</a>
  <a href="/internal">internal</a>
</body>
</html>`

		summary := Summarize([]byte(page))

		assert.Equal(t, "Consulta de Valores", summary.Title)
		assert.Equal(t, "Consulte seus valores a receber", summary.MetaDescription)
		assert.Equal(t, 1, summary.FormCount)
		assert.Equal(t, 2, summary.InputCount)
		assert.True(t, summary.HasPasswordField)
		assert.Equal(t, 1, summary.ExternalLinks, "relative links are not external")
	})

	t.Run("Flags Scam Related Content", func(t *testing.T) {
		page := `<html><body>
  <p>Informe seu CPF para liberar o saque via PIX</p>
  <form><input type="password"></form>
</body></html>`

		summary := Summarize([]byte(page))

		assert.Contains(t, summary.Signals, "PAGE_PASSWORD_FORM")
		assert.Contains(t, summary.Signals, "PAGE_CPF_MENTION")
		assert.Contains(t, summary.Signals, "PAGE_PIX_MENTION")
		assert.Contains(t, summary.Signals, "PAGE_BENEFIT_MENTION")
	})

	t.Run("Benign Page Has No Signals", func(t *testing.T) {
		summary := Summarize([]byte(`<html><body><p>hello world</p></body></html>`))

		assert.Empty(t, summary.Signals)
		assert.False(t, summary.HasPasswordField)
	})

	t.Run("Tolerates Malformed HTML", func(t *testing.T) {
		summary := Summarize([]byte(`<title>broken</title><form><input type=password><p>unclosed`))

		assert.Equal(t, "broken", summary.Title)
		assert.Equal(t, 1, summary.FormCount)
		assert.True(t, summary.HasPasswordField)
	})

	t.Run("Empty Body", func(t *testing.T) {
		summary := Summarize(nil)

		assert.Empty(t, summary.Title)
		assert.Zero(t, summary.FormCount)
	})
}
