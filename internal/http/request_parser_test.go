package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseRangeParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    RangeParams
		wantCat string
		wantErr string
	}{
		{name: "window only", query: "from=0&to=100", want: RangeParams{From: 0, To: 100}},
		{name: "with category", query: "from=1&to=2&categoryId=c1", want: RangeParams{From: 1, To: 2}, wantCat: "c1"},
		{name: "blank category ignored", query: "from=1&to=2&categoryId=%20", want: RangeParams{From: 1, To: 2}},
		{name: "inverted window allowed", query: "from=10&to=1", want: RangeParams{From: 10, To: 1}},
		{name: "missing from", query: "to=1", wantErr: "missing from"},
		{name: "bad to", query: "from=1&to=soon", wantErr: `invalid to "soon"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseRangeParams(q)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseRangeParams() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRangeParams() error = %v", err)
			}
			if got.From != tt.want.From || got.To != tt.want.To {
				t.Errorf("ParseRangeParams() = %+v, want %+v", got, tt.want)
			}
			switch {
			case tt.wantCat == "" && got.CategoryID != nil:
				t.Errorf("CategoryID = %q, want nil", *got.CategoryID)
			case tt.wantCat != "" && (got.CategoryID == nil || *got.CategoryID != tt.wantCat):
				t.Errorf("CategoryID = %v, want %q", got.CategoryID, tt.wantCat)
			}
		})
	}
}

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)

	t.Run("defaults to current month in location", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		got, err := ParseMonthParams(url.Values{}, now, loc)
		if err != nil {
			t.Fatal(err)
		}
		if got.Year != 2024 || got.Month != 3 {
			t.Errorf("got %+v, want April (3) 2024", got)
		}
	})

	t.Run("explicit zero-indexed month", func(t *testing.T) {
		got, err := ParseMonthParams(url.Values{"year": {"2024"}, "month": {"1"}}, now, time.UTC)
		if err != nil || got.Year != 2024 || got.Month != 1 {
			t.Errorf("got %+v, %v", got, err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		if _, err := ParseMonthParams(url.Values{"year": {"x"}}, now, time.UTC); err == nil {
			t.Error("expected error for year")
		}
		if _, err := ParseMonthParams(url.Values{"month": {"feb"}}, now, time.UTC); err == nil {
			t.Error("expected error for month")
		}
	})
}

func TestParseBoolParam(t *testing.T) {
	q := url.Values{"cascade": {"true"}, "bad": {"maybe"}}
	if v, err := ParseBoolParam(q, "cascade", false); err != nil || !v {
		t.Errorf("cascade = %v, %v", v, err)
	}
	if v, err := ParseBoolParam(q, "absent", true); err != nil || !v {
		t.Errorf("absent = %v, %v", v, err)
	}
	if _, err := ParseBoolParam(q, "bad", false); err == nil {
		t.Error("expected error")
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Work"}`, false},
		{"trailing whitespace", "{\"name\":\"Work\"}\n", false},
		{"empty", ``, true},
		{"unknown field", `{"name":"Work","extra":1}`, true},
		{"two objects", `{"name":"a"}{"name":"b"}`, true},
		{"malformed", `{"name":`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSONBody(httptest.NewRecorder(), r, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSONBody() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOwnerIDAndSanitize(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderOwnerID, "  user-1\x00 ")
	if got := OwnerID(r); got != "user-1" {
		t.Errorf("OwnerID() = %q", got)
	}
	if got := sanitizeInput("a\tb\x07c"); got != "a\tbc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
