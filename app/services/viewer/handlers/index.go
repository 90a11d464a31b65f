package handlers

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/ardanlabs/utxochain/foundation/web"
)

//go:embed assets/index.html
var indexHTML string

// index renders the page that streams the node's events.
type index struct {
	page []byte
}

func newIndex(build string, nodeURL string) (*index, error) {
	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, err
	}

	eventsURL := strings.Replace(strings.TrimSuffix(nodeURL, "/"), "http", "ws", 1) + "/v1/events"

	data := struct {
		Build     string
		NodeURL   string
		EventsURL string
	}{
		Build:     build,
		NodeURL:   nodeURL,
		EventsURL: eventsURL,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return &index{page: buf.Bytes()}, nil
}

func (ig *index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	web.SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(ig.page)
	return err
}
