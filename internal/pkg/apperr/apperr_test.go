package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func abortWith(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Abort(c, err)
	if !c.IsAborted() {
		t.Fatalf("expected context to be aborted")
	}
	return w
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body["detail"]
}

func TestAbort_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{BadRequest("bad"), http.StatusBadRequest},
		{Conflict("Email already registered"), http.StatusBadRequest},
		{Unauthenticated("nope"), http.StatusUnauthorized},
		{NotFound("Todo not found"), http.StatusNotFound},
		{Duplicate("Duplicate request"), http.StatusConflict},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := abortWith(t, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
	}
}

func TestAbort_UnauthenticatedChallenge(t *testing.T) {
	w := abortWith(t, Unauthenticated("Could not validate credentials"))
	if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected bearer challenge, got %q", got)
	}
	if got := detailOf(t, w); got != "Could not validate credentials" {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestAbort_PlainErrorHidesCause(t *testing.T) {
	w := abortWith(t, errors.New("dial tcp 10.0.0.1:3306: refused"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := detailOf(t, w); got != "internal server error" {
		t.Fatalf("cause leaked into response: %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	if !errors.Is(Internal("wrap", cause), cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}
