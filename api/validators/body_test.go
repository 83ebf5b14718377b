package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
)

type listingBody struct {
	AssetID  string `json:"assetId" validate:"required,uuid"`
	Price    string `json:"price" validate:"required,usd_amount"`
	Currency string `json:"currency" validate:"omitempty,oneof=USD usd"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"assetId":"nope","currency":"EUR"}`))
	var body listingBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["assetId"] != "must be a uuid" {
		t.Fatalf("unexpected assetId message %q", details["assetId"])
	}
	if details["price"] != "is required" {
		t.Fatalf("unexpected price message %q", details["price"])
	}
	if !strings.HasPrefix(details["currency"], "must be one of") {
		t.Fatalf("unexpected currency message %q", details["currency"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"assetId":"6f1c1a8e-3c1b-4d8e-9a47-0c7a8d1f2b3c","price":"10","sellerId":"x"}`))
	var body listingBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyCustomTags(t *testing.T) {
	type syncBody struct {
		TxHash string `json:"txHash" validate:"required,tx_hash"`
		Price  string `json:"price" validate:"required,usd_amount"`
	}
	hash := "0x" + strings.Repeat("ab", 32)
	cases := []struct {
		body  string
		field string
	}{
		{`{"txHash":"` + hash + `","price":"12.50"}`, ""},
		{`{"txHash":"` + hash + `","price":"12.505"}`, "price"},
		{`{"txHash":"` + hash + `","price":"0"}`, "price"},
		{`{"txHash":"` + hash + `","price":"-3"}`, "price"},
		{`{"txHash":"` + hash[2:] + `","price":"1"}`, "txHash"},
		{`{"txHash":"0xzz` + hash[4:] + `","price":"1"}`, "txHash"},
	}
	for _, tc := range cases {
		var body syncBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), &body)
		if tc.field == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.body, err)
			}
			continue
		}
		details, _ := pkgerrors.As(err).Details().(map[string]string)
		if details[tc.field] == "" {
			t.Fatalf("%s: expected %s to be rejected, got %v", tc.body, tc.field, err)
		}
	}
}

func TestDecodeJSONBodyRejectsTrailingDataAndOversizedBodies(t *testing.T) {
	var body listingBody
	trailing := `{"assetId":"6f1c1a8e-3c1b-4d8e-9a47-0c7a8d1f2b3c","price":"10"} {"again":true}`
	if err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(trailing)), &body); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing data to be rejected, got %v", err)
	}

	huge := `{"assetId":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &body)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Message() != "request body too large" {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestParseQueryFloat(t *testing.T) {
	cases := map[string]struct {
		want float64
		ok   bool
	}{
		"":      {want: 0, ok: true},
		"12.5":  {want: 12.5, ok: true},
		"-1":    {ok: false},
		"NaN":   {ok: false},
		"lots":  {ok: false},
		"1e400": {ok: false},
	}
	for raw, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/?avgMintsPerDay="+raw, nil)
		got, err := ParseQueryFloat(req, "avgMintsPerDay")
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: expected %v, got %v (%v)", raw, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected an error", raw)
		}
	}
}
