package main

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, secret, rawURL string, form url.Values) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, req.ParseForm())

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(req.URL.String()))
	for _, key := range sortedKeys(req.Form) {
		for _, v := range req.Form[key] {
			mac.Write([]byte(key))
			mac.Write([]byte(v))
		}
	}
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	req.Header.Set("X-Signature", sig)
	return req
}

func TestWebhookValidSignature(t *testing.T) {
	h := &webhookHandler{sharedSecret: "topsecret"}

	t.Run("accepts a correctly signed request", func(t *testing.T) {
		form := url.Values{"From": {"+51999999999"}, "Body": {"hola"}}
		req := signedRequest(t, "topsecret", "http://example.com/webhook", form)
		assert.True(t, h.validSignature(req))
	})

	t.Run("rejects when secret does not match", func(t *testing.T) {
		form := url.Values{"From": {"+51999999999"}, "Body": {"hola"}}
		req := signedRequest(t, "wrongsecret", "http://example.com/webhook", form)
		assert.False(t, h.validSignature(req))
	})

	t.Run("rejects when form values were tampered with after signing", func(t *testing.T) {
		form := url.Values{"From": {"+51999999999"}, "Body": {"hola"}}
		req := signedRequest(t, "topsecret", "http://example.com/webhook", form)
		req.Form.Set("Body", "tampered")
		assert.False(t, h.validSignature(req))
	})

	t.Run("rejects a missing signature header", func(t *testing.T) {
		form := url.Values{"From": {"+51999999999"}}
		req := httptest.NewRequest(http.MethodPost, "http://example.com/webhook", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if err := req.ParseForm(); err != nil {
			t.Fatal(err)
		}
		assert.False(t, h.validSignature(req))
	})
}

func TestSortedKeys(t *testing.T) {
	values := url.Values{"zeta": {"1"}, "alpha": {"2"}, "mid": {"3"}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, sortedKeys(values))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
	assert.Equal(t, "", truncate("", 3))
}
