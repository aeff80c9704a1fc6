package venue

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func testAuth(t *testing.T) *Auth {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &Auth{keyID: "test-key", privateKey: key}
}

func TestRESTHeadersAreVerifiable(t *testing.T) {
	t.Parallel()
	a := testAuth(t)

	headers, err := a.RESTHeaders("GET", "/portfolio/balance")
	if err != nil {
		t.Fatalf("RESTHeaders: %v", err)
	}

	if headers.Get(headerKeyID) != "test-key" {
		t.Errorf("key header = %q", headers.Get(headerKeyID))
	}
	ts := headers.Get(headerTimestamp)
	if ts == "" {
		t.Fatal("missing timestamp header")
	}

	message := ts + "GET" + restPathPrefix + "/portfolio/balance"
	sigBytes, err := base64.StdEncoding.DecodeString(headers.Get(headerSignature))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPSS(&a.privateKey.PublicKey, crypto.SHA256, digest[:], sigBytes, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	}); err != nil {
		t.Errorf("signature did not verify: %v", err)
	}
}

func TestRESTHeadersPrependsAPIPrefixOnce(t *testing.T) {
	t.Parallel()
	a := testAuth(t)

	headers, err := a.RESTHeaders("GET", restPathPrefix+"/portfolio/balance")
	if err != nil {
		t.Fatalf("RESTHeaders: %v", err)
	}
	if headers.Get(headerSignature) == "" {
		t.Fatal("expected a signature")
	}
}

func TestWSAuthHeadersSignsWSPath(t *testing.T) {
	t.Parallel()
	a := testAuth(t)

	headers, err := a.WSAuthHeaders()
	if err != nil {
		t.Fatalf("WSAuthHeaders: %v", err)
	}

	ts := headers.Get(headerTimestamp)
	message := ts + "GET" + wsAuthPath
	if !strings.Contains(message, "/trade-api/ws/v2") {
		t.Fatalf("message missing ws path: %s", message)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(headers.Get(headerSignature))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPSS(&a.privateKey.PublicKey, crypto.SHA256, digest[:], sigBytes, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	}); err != nil {
		t.Errorf("signature did not verify: %v", err)
	}
}
