package mid_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/todochain/business/web/mid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Cors(t *testing.T) {
	type table struct {
		name    string
		origins string
		origin  string
		exp     string
		vary    bool
	}

	tt := []table{
		{name: "any", origins: "*", origin: "http://todo.example", exp: "*"},
		{name: "listed", origins: "http://a.example, http://todo.example", origin: "http://todo.example", exp: "http://todo.example", vary: true},
		{name: "unlisted", origins: "http://a.example", origin: "http://todo.example", exp: ""},
		{name: "no-origin", origins: "http://a.example", origin: "", exp: ""},
	}

	t.Log("Given the need to answer CORS requests for the node's routes.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
				{
					called := false
					h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
						called = true
						return nil
					}

					r := httptest.NewRequest(http.MethodOptions, "/v1/tx/submit", nil)
					if tst.origin != "" {
						r.Header.Set("Origin", tst.origin)
					}
					w := httptest.NewRecorder()

					if err := mid.Cors(tst.origins)(h)(context.Background(), w, r); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould pass the request through: %v", failed, testID, err)
					}
					if !called {
						t.Fatalf("\t%s\tTest %d:\tShould call the next handler.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould call the next handler.", success, testID)

					if got := w.Header().Get("Access-Control-Allow-Origin"); got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould allow origin %q, got %q", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould allow the expected origin.", success, testID)

					methods := w.Header().Get("Access-Control-Allow-Methods")
					switch {
					case tst.exp != "" && methods != "GET, POST, OPTIONS":
						t.Fatalf("\t%s\tTest %d:\tShould only allow the node's methods, got %q", failed, testID, methods)
					case tst.exp == "" && methods != "":
						t.Fatalf("\t%s\tTest %d:\tShould not set methods for a refused origin, got %q", failed, testID, methods)
					}
					t.Logf("\t%s\tTest %d:\tShould set the expected methods.", success, testID)

					if got := w.Header().Get("Vary") == "Origin"; got != tst.vary {
						t.Fatalf("\t%s\tTest %d:\tShould vary on origin only for listed origins: %v", failed, testID, got)
					}
					t.Logf("\t%s\tTest %d:\tShould vary on origin only for listed origins.", success, testID)
				}
			}

			t.Run(fmt.Sprintf("cors-%d", testID), f)
		}
	}
}
