package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

const maxPartBytes = 6 << 20

// parsedMail is the textual content of a message.
type parsedMail struct {
	MessageID string
	Subject   string
	Plain     string
	HTML      string
}

func parseRFC822(raw []byte, fallbackSubject string) parsedMail {
	out := parsedMail{Subject: fallbackSubject}
	if len(raw) == 0 {
		return out
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		out.Plain = string(raw)
		return out
	}
	out.MessageID = strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>")
	if s := decodeHeader(msg.Header.Get("Subject")); s != "" {
		out.Subject = s
	}

	body, _ := io.ReadAll(io.LimitReader(msg.Body, 25<<20))
	out.Plain, out.HTML = textParts(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), body)
	if out.Plain == "" && out.HTML == "" {
		out.Plain = string(body)
	}
	return out
}

// textParts walks a (possibly nested) MIME body and keeps the longest
// text/plain and text/html parts.
func textParts(contentType, cte string, body []byte) (plain, html string) {
	cte = strings.ToLower(strings.TrimSpace(cte))
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(decodeTransfer(body, cte)), ""
	}
	media = strings.ToLower(media)

	if !strings.HasPrefix(media, "multipart/") {
		s := string(decodeTransfer(body, cte))
		if media == "text/html" {
			return "", s
		}
		return s, ""
	}
	if params["boundary"] == "" {
		return string(decodeTransfer(body, cte)), ""
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		// multipart.Part decodes quoted-printable itself and drops the header.
		b, _ := io.ReadAll(io.LimitReader(p, maxPartBytes))
		pl, ht := textParts(p.Header.Get("Content-Type"), p.Header.Get("Content-Transfer-Encoding"), b)
		if len(pl) > len(plain) {
			plain = pl
		}
		if len(ht) > len(html) {
			html = ht
		}
	}
	return plain, html
}

func decodeTransfer(b []byte, cte string) []byte {
	var r io.Reader
	switch cte {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(bytes.TrimSpace(b)))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(b))
	default:
		return b
	}
	out, err := io.ReadAll(io.LimitReader(r, maxPartBytes))
	if err != nil && len(out) == 0 {
		return b
	}
	return out
}

// decodeHeader resolves RFC 2047 encoded words.
func decodeHeader(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	out, err := new(mime.WordDecoder).DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
