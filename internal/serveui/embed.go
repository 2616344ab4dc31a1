// Package serveui embeds the browser chat UI served by the HTTP server.
package serveui

import _ "embed"

//go:embed static/index.html
var indexHTML []byte

//go:embed static/dist/index.js
var indexJS []byte

//go:embed static/dist/styles.css
var stylesCSS []byte

// IndexHTML returns the embedded UI page.
func IndexHTML() []byte {
	return clone(indexHTML)
}

// IndexJS returns the embedded UI script.
func IndexJS() []byte {
	return clone(indexJS)
}

// StylesCSS returns the embedded UI stylesheet.
func StylesCSS() []byte {
	return clone(stylesCSS)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
