package llm

import (
	"encoding/base64"
	"net/http"
)

// ImageDataURL embeds an image as a data URL; the MIME type is sniffed.
func ImageDataURL(img []byte) string {
	mt := http.DetectContentType(img)
	if mt == "application/octet-stream" {
		mt = "image/png"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img)
}
