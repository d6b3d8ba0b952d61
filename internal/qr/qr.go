// Package qr renders raw pairing tokens into scannable images.
package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderToken renders a raw pairing token as a PNG data URI suitable for an
// <img> tag. Pure function, no side effects.
func RenderToken(raw string) (string, error) {
	png, err := qrcode.Encode(raw, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
