package services

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

func isFileExtensionAllowed(fileName string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	fileExt := strings.ToLower(filepath.Ext(fileName))
	for _, ext := range allowed {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "*" {
			return true
		}
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if normalized == fileExt {
			return true
		}
	}

	return false
}

func isInlineType(mimeType string, inlineTypes []string) bool {
	mimeType = strings.ToLower(mimeType)
	return lo.ContainsBy(inlineTypes, func(t string) bool {
		return strings.EqualFold(strings.TrimSpace(t), mimeType)
	})
}

// contentDisposition builds the header value for serving filename. Inline
// values always use the RFC 5987 extended form so non-ASCII names survive.
func contentDisposition(filename string, inline bool) string {
	if inline {
		return "inline; filename*=UTF-8''" + encodeRFC5987(filename)
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment; filename*=UTF-8''" + encodeRFC5987(filename)
}

const attrChars = "!#$&+-.^_`|~"

func encodeRFC5987(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || strings.IndexByte(attrChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%")
		b.WriteString(strings.ToUpper(hexByte(c)))
	}
	return b.String()
}

func hexByte(c byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[c>>4], digits[c&0x0f]})
}

func downloadURL(publicURL, fileID, filename string) string {
	return publicURL + "/api/v1/files/download/" + fileID + "/" + url.PathEscape(filename)
}
