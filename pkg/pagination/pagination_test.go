package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"custom values", "/?limit=50&offset=10", 50, 10},
		{"max limit", "/?limit=1000", MaxLimit, 0},
		{"negative offset", "/?offset=-5", DefaultLimit, 0},
		{"page", "/?limit=10&page=3", 10, 20},
		{"offset wins over page", "/?limit=10&page=3&offset=5", 10, 5},
		{"garbage", "/?limit=abc&page=x", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(tt.target)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d",
					p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b"}
	resp := NewResponse(data, 10, 2, 0)

	if resp.Total != 10 {
		t.Errorf("expected total 10, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more to be true")
	}
	if resp.NextOffset == nil || *resp.NextOffset != 2 {
		t.Errorf("expected next offset 2, got %v", resp.NextOffset)
	}

	resp = NewResponse(data, 2, 2, 0)
	if resp.HasMore {
		t.Error("expected has_more to be false")
	}
	if resp.NextOffset != nil {
		t.Errorf("expected no next offset on the last page, got %d", *resp.NextOffset)
	}
}

func TestParams_Window(t *testing.T) {
	tests := []struct {
		p          Params
		n          int
		start, end int
	}{
		{Params{Limit: 10, Offset: 0}, 25, 0, 10},
		{Params{Limit: 10, Offset: 20}, 25, 20, 25},
		{Params{Limit: 10, Offset: 30}, 25, 25, 25},
	}
	for _, tt := range tests {
		s, e := tt.p.Window(tt.n)
		if s != tt.start || e != tt.end {
			t.Errorf("%+v.Window(%d) = %d,%d want %d,%d", tt.p, tt.n, s, e, tt.start, tt.end)
		}
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(25) {
		t.Error("expected next page")
	}
	if p.NextOffset() != 10 {
		t.Errorf("expected next offset 10, got %d", p.NextOffset())
	}
	p.Offset = 20
	if p.HasNext(25) {
		t.Error("expected no next page")
	}
}
