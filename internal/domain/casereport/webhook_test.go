package casereport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestWebhookListener_NoURLIsNoop(t *testing.T) {
	l := NewWebhookListener("", "secret", zerolog.Nop())
	if err := l.AfterSubmit(context.Background(), &CaseReportForm{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWebhookListener_DeliversSignedPayload(t *testing.T) {
	const secret = "report-secret"
	var gotSignature string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := NewWebhookListener(srv.URL, secret, zerolog.Nop())
	form := &CaseReportForm{FullName: "Horatio Hornblower", Comments: "confirmed"}
	if err := l.AfterSubmit(context.Background(), form); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSignature != want {
		t.Errorf("signature = %q, want %q", gotSignature, want)
	}
}

func TestWebhookListener_NonSuccessStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	l := NewWebhookListener(srv.URL, "", zerolog.Nop())
	if err := l.AfterSubmit(context.Background(), &CaseReportForm{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
