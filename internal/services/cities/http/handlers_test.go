package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	perr "smogwatch/internal/platform/errors"
	phttp "smogwatch/internal/platform/net/http"
	"smogwatch/internal/services/cities/domain"
	chttp "smogwatch/internal/services/cities/http"
)

// stubService returns canned pages and records the queries it saw
type stubService struct {
	ranked domain.RankedPage
	err    error
	got    []domain.RankedQuery
}

func (s *stubService) Ranked(_ context.Context, q domain.RankedQuery) (domain.RankedPage, error) {
	s.got = append(s.got, q)
	return s.ranked, s.err
}

func (s *stubService) Top(_ context.Context, q domain.TopQuery) ([]domain.City, error) {
	s.got = append(s.got, domain.RankedQuery{Country: q.Country, Limit: q.Limit, Page: 1})
	return s.ranked.Cities, s.err
}

func (s *stubService) Diagnostics(context.Context) (domain.Diagnostics, error) {
	return domain.Diagnostics{PageEntries: 1, DescriptionEntries: 2, CountryEntries: 3}, s.err
}

func newTestRouter(s *stubService) http.Handler {
	m := chi.NewRouter()
	r := phttp.AdaptChi(m)
	chttp.Register(r, s)
	return m
}

func TestRanked_BindsAndDelegates(t *testing.T) {
	s := &stubService{ranked: domain.RankedPage{
		Page: 2, Limit: 5, HasMore: true,
		Cities: []domain.City{{Name: "Gdansk", Country: "PL", Pollution: 55, Description: "City in Poland"}},
	}}
	mux := newTestRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/ranked", strings.NewReader(`{"country":"PL","limit":5,"page":2}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(s.got) != 1 || s.got[0].Country != "PL" || s.got[0].Page != 2 {
		t.Fatalf("service saw wrong query: %+v", s.got)
	}

	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	data, _ := json.Marshal(env.Data)
	var page domain.RankedPage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if !page.HasMore || len(page.Cities) != 1 || page.Cities[0].Name != "Gdansk" {
		t.Fatalf("bad page payload: %+v", page)
	}
}

func TestRanked_ValidationRejectsBeforeService(t *testing.T) {
	s := &stubService{}
	mux := newTestRouter(s)

	// three-letter country violates len=2
	req := httptest.NewRequest(http.MethodPost, "/ranked", strings.NewReader(`{"country":"POL"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code < 400 {
		t.Fatalf("expected validation failure, got %d", rr.Code)
	}
	if len(s.got) != 0 {
		t.Fatalf("service should not have been called, saw %+v", s.got)
	}
}

func TestRanked_UpstreamAuthFailureMapsToServiceUnavailable(t *testing.T) {
	// an auth failure against the measurement source is the server's
	// problem: the API must answer 503, never 401
	s := &stubService{err: perr.Wrapf(
		perr.Unauthorizedf("measurement auth rejected"),
		perr.ErrorCodeUnavailable, "measurement upstream unavailable")}
	mux := newTestRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/ranked", strings.NewReader(`{"country":"PL"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rr.Code, rr.Body.String())
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Code != perr.ErrorCodeUnavailable {
		t.Fatalf("envelope code = %d, want unavailable", env.Code)
	}
}

func TestTop_DelegatesFirstPage(t *testing.T) {
	s := &stubService{ranked: domain.RankedPage{
		Cities: []domain.City{{Name: "Lyon", Country: "FR", Pollution: 12, Description: "City in France"}},
	}}
	mux := newTestRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/top", strings.NewReader(`{"country":"FR","limit":1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(s.got) != 1 || s.got[0].Country != "FR" || s.got[0].Page != 1 {
		t.Fatalf("service saw wrong query: %+v", s.got)
	}
}

func TestDiagnostics_ReturnsCacheCounts(t *testing.T) {
	s := &stubService{}
	mux := newTestRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	data, _ := json.Marshal(env.Data)
	var d domain.Diagnostics
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal diagnostics: %v", err)
	}
	if d.PageEntries != 1 || d.DescriptionEntries != 2 || d.CountryEntries != 3 {
		t.Fatalf("bad diagnostics: %+v", d)
	}
}
