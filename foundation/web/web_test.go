package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type payload struct {
	Name string `json:"name"`
}

func (p payload) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func Test_App(t *testing.T) {
	shutdown := make(chan os.Signal, 1)

	var order []string
	mw := func(tag string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, tag)
				return handler(ctx, w, r)
			}
		}
	}

	app := web.NewApp(shutdown, mw("app"))

	app.Handle(http.MethodGet, "v1", "/echo/:name", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v, err := web.GetValues(ctx)
		if err != nil {
			return err
		}
		if v.TraceID == "" {
			return errors.New("missing trace id")
		}
		return web.Respond(ctx, w, payload{Name: web.Param(r, "name")}, http.StatusOK)
	}, mw("route"))

	app.Handle(http.MethodPost, "v1", "/echo", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var p payload
		if err := web.Decode(r, &p); err != nil {
			return web.Respond(ctx, w, err.Error(), http.StatusBadRequest)
		}
		return web.Respond(ctx, w, p, http.StatusOK)
	})

	app.Handle(http.MethodGet, "v1", "/integrity", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity failure")
	})

	t.Log("Given the need to route requests through middleware.")
	{
		r := httptest.NewRequest(http.MethodGet, "/v1/echo/bill", nil)
		w := httptest.NewRecorder()
		app.ServeHTTP(w, r)

		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"name":"bill"`) {
			t.Fatalf("\t%s\tShould respond with the route parameter: %d %s", failed, w.Code, w.Body.String())
		}
		t.Logf("\t%s\tShould respond with the route parameter.", success)

		if len(order) != 2 || order[0] != "app" || order[1] != "route" {
			t.Fatalf("\t%s\tShould run app middleware before route middleware: %v", failed, order)
		}
		t.Logf("\t%s\tShould run app middleware before route middleware.", success)

		r = httptest.NewRequest(http.MethodPost, "/v1/echo", strings.NewReader(`{"name":""}`))
		w = httptest.NewRecorder()
		app.ServeHTTP(w, r)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould validate the decoded payload: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould validate the decoded payload.", success)

		r = httptest.NewRequest(http.MethodGet, "/v1/integrity", nil)
		w = httptest.NewRecorder()
		app.ServeHTTP(w, r)

		select {
		case <-shutdown:
			t.Logf("\t%s\tShould signal shutdown on an integrity failure.", success)
		default:
			t.Fatalf("\t%s\tShould signal shutdown on an integrity failure.", failed)
		}
	}
}
