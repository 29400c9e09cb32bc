package httpmiddleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
)

// APIKeyHeader is the default header carrying the client API key.
const APIKeyHeader = "X-API-Key"

// APIKeyConfig configures API key authentication.
type APIKeyConfig struct {
	// Pepper is the HMAC-SHA256 key used to hash presented keys.
	Pepper []byte
	// Hashes are hex-encoded HMAC-SHA256 digests of the accepted keys.
	Hashes []string
	// Header defaults to APIKeyHeader.
	Header string
}

// HashAPIKey returns the hex HMAC-SHA256 digest of key, the form stored in
// APIKeyConfig.Hashes.
func HashAPIKey(pepper []byte, key string) string {
	return hex.EncodeToString(hashKey(pepper, key))
}

func hashKey(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// APIKey rejects requests whose key does not hash to one of cfg.Hashes with
// 401. Every stored digest is compared in constant time.
func APIKey(cfg APIKeyConfig) (Middleware, error) {
	header := cfg.Header
	if header == "" {
		header = APIKeyHeader
	}
	if len(cfg.Hashes) == 0 {
		return nil, errors.New("api key auth: no key hashes configured")
	}
	accepted := make([][]byte, 0, len(cfg.Hashes))
	for i, h := range cfg.Hashes {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, errors.Wrapf(err, "api key hash %d", i)
		}
		if len(raw) != sha256.Size {
			return nil, errors.Errorf("api key hash %d: want %d bytes, got %d", i, sha256.Size, len(raw))
		}
		accepted = append(accepted, raw)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(header)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			sum := hashKey(cfg.Pepper, key)
			match := 0
			for _, want := range accepted {
				match |= subtle.ConstantTimeCompare(sum, want)
			}
			if match != 1 {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
