package view

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// ErrorPage is the HTML document shown to browsers when a request fails.
// message is escaped; an empty message falls back to the status text.
func ErrorPage(code int, message string) templ.Component {
	if message == "" {
		message = http.StatusText(code)
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>%d %s</title></head>`+
			`<body class="min-h-screen bg-neutral-900 text-neutral-100 flex items-center justify-center">`+
			`<main class="card w-96 rounded-xl p-6 text-center"><h1 class="text-4xl font-bold">%d</h1><p>%s</p>`+
			`<a href="/" class="underline">Back to the card</a></main></body></html>`,
			code, templ.EscapeString(http.StatusText(code)), code, templ.EscapeString(message))
		return err
	})
}
