package venue

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"btc-option-mm/internal/errs"
)

const (
	restPathPrefix = "/trade-api/v2"
	wsAuthPath     = "/trade-api/ws/v2"

	headerKeyID     = "KALSHI-ACCESS-KEY"
	headerSignature = "KALSHI-ACCESS-SIGNATURE"
	headerTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Auth signs REST and WebSocket requests with RSA-PSS/SHA-256 over
// "{timestamp_ms}{METHOD}{path}", per the venue's signature scheme.
type Auth struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

// LoadAuth reads a PKCS#1-PEM private key from path and pairs it with the
// given API key ID. Unreadable or unparseable keys are a fatal configuration
// error, not a runtime one.
func LoadAuth(keyID, privateKeyPath string) (*Auth, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read private key: %v", errs.ConfigFatal, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: decode PEM: no block found in %s", errs.ConfigFatal, privateKeyPath)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Some venues ship PKCS#8-wrapped RSA keys under the same .pem extension.
		generic, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("%w: parse PKCS#1 private key: %v", errs.ConfigFatal, err)
		}
		rsaKey, ok := generic.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key at %s is not an RSA private key", errs.ConfigFatal, privateKeyPath)
		}
		key = rsaKey
	}

	return &Auth{keyID: keyID, privateKey: key}, nil
}

// sign computes base64(RSA-PSS-SHA256(message)) using the loaded key.
func (a *Auth) sign(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, a.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// RESTHeaders signs a REST request. path must be stripped of query string but
// include the /trade-api/v2 prefix.
func (a *Auth) RESTHeaders(method, path string) (http.Header, error) {
	if !strings.HasPrefix(path, restPathPrefix) {
		path = restPathPrefix + path
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig, err := a.sign(ts + method + path)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(headerKeyID, a.keyID)
	h.Set(headerSignature, sig)
	h.Set(headerTimestamp, ts)
	return h, nil
}

// WSAuthHeaders implements orderbook.Authenticator: signs the WebSocket
// handshake over "{timestamp_ms}GET/trade-api/ws/v2".
func (a *Auth) WSAuthHeaders() (http.Header, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig, err := a.sign(ts + "GET" + wsAuthPath)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(headerKeyID, a.keyID)
	h.Set(headerSignature, sig)
	h.Set(headerTimestamp, ts)
	return h, nil
}
