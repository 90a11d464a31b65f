package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/utxochain/business/sys/validate"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/business/web/mid"
	"github.com/ardanlabs/utxochain/foundation/web"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Errors(t *testing.T) {
	log := zap.NewNop().Sugar()

	tt := []struct {
		name   string
		err    error
		panic  bool
		status int
		fields bool
	}{
		{name: "trusted", err: errs.NewTrusted(errors.New("bad tx"), http.StatusBadRequest), status: http.StatusBadRequest},
		{name: "fields", err: validate.FieldErrors{{Field: "amount", Error: "amount is required"}}, status: http.StatusBadRequest, fields: true},
		{name: "untrusted", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
		{name: "panic", panic: true, status: http.StatusInternalServerError},
	}

	t.Log("Given the need to turn handler errors into responses.")
	{
		for testID, test := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the handler fails with a %s error.", testID, test.name)
				{
					app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())
					app.Handle(http.MethodGet, "", "/", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
						if test.panic {
							panic("boom")
						}
						return test.err
					})

					w := httptest.NewRecorder()
					app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

					if w.Code != test.status {
						t.Fatalf("\t%s\tTest %d:\tShould respond with %d, got %d.", failed, testID, test.status, w.Code)
					}
					t.Logf("\t%s\tTest %d:\tShould respond with %d.", success, testID, test.status)

					var er errs.Response
					if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Error == "" {
						t.Fatalf("\t%s\tTest %d:\tShould respond with an error document: %s", failed, testID, w.Body.String())
					}
					t.Logf("\t%s\tTest %d:\tShould respond with an error document.", success, testID)

					if test.fields && er.Fields["amount"] == "" {
						t.Fatalf("\t%s\tTest %d:\tShould include the failing fields.", failed, testID)
					}
				}
			}

			t.Run(test.name, tf)
		}
	}
}
