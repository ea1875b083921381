// Package signing builds the Rocktick-Signature header attached to
// outgoing dispatch requests.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Header is the JSON shape written into the Rocktick-Signature header.
type Header struct {
	T  int64  `json:"t"`
	P  string `json:"p"`
	V1 string `json:"v1"`
}

// Builder computes the signature for one outgoing request.
type Builder struct {
	Key  []byte
	Time time.Time
	Path string
	Body []byte
}

// SignatureHeader returns the hex-HMAC and its JSON envelope. Message
// format: "." + unix_seconds + "." + path + ("." + body)?
func (b Builder) SignatureHeader() (string, error) {
	ts := b.Time.Unix()
	message := fmt.Sprintf(".%d.%s", ts, b.Path)
	if len(b.Body) > 0 {
		message += "." + string(b.Body)
	}

	mac := hmac.New(sha256.New, b.Key)
	mac.Write([]byte(message))
	v1 := hex.EncodeToString(mac.Sum(nil))

	out, err := json.Marshal(Header{T: ts, P: b.Path, V1: v1})
	if err != nil {
		return "", fmt.Errorf("signing: marshal header: %w", err)
	}
	return string(out), nil
}
