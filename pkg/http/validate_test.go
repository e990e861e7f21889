package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Name   string `query:"name" validate:"required"`
	Window int    `query:"window" default:"30" validate:"gte=0,lte=365"`
	Policy string `query:"policy" default:"fail_fast" validate:"oneof=fail_fast collect"`
}

func bind(t *testing.T, target string) (*sampleRequest, interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	out := &sampleRequest{}
	return out, ReadAndValidateRequest(c, out)
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	r, verr := bind(t, "/?name=a")
	if verr != nil {
		t.Fatalf("unexpected validation error %v", verr)
	}
	if r.Window != 30 || r.Policy != "fail_fast" {
		t.Fatalf("defaults not applied: %+v", r)
	}
}

func TestReadAndValidateRequestExplicitZeroWins(t *testing.T) {
	r, verr := bind(t, "/?name=a&window=0&policy=collect")
	if verr != nil {
		t.Fatalf("unexpected validation error %v", verr)
	}
	if r.Window != 0 || r.Policy != "collect" {
		t.Fatalf("explicit values lost: %+v", r)
	}
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	_, verr := bind(t, "/?window=400")
	errs, ok := verr.([]ValidationError)
	if !ok || len(errs) != 2 {
		t.Fatalf("expected two validation errors, got %#v", verr)
	}
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Code] = e.Field
	}
	if codes["ERR_REQUIRED"] != "name" || codes["ERR_LTE"] != "window" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestAppErrorResponseStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := AppErrorResponse(c, BadGatewayError("alpaca down")); err != nil {
		t.Fatalf("response: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
}
