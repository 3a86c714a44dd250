// Package extract turns raw .eml files into EmailRecords: the first
// text/html body plus the attachment filenames harvested from part headers.
// It is the thin collaborator in front of the classification pipeline; the
// pipeline itself never looks at anything but the record.
package extract

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/attachment-triage/internal/core"
)

// idPattern pulls the corpus id out of an input file name (example_123.eml).
var idPattern = regexp.MustCompile(`example_(\d+)`)

// NamePattern gates which part filenames count as corpus attachments;
// inline noise without a corpus name never enters the record.
type NamePattern struct {
	re *regexp.Regexp
}

// NewNamePattern compiles a filename gate. An empty expression admits every
// named part.
func NewNamePattern(expr string) (*NamePattern, error) {
	if expr == "" {
		return &NamePattern{}, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment name pattern: %w", err)
	}
	return &NamePattern{re: re}, nil
}

// Match reports whether a filename passes the gate.
func (p *NamePattern) Match(name string) bool {
	if p == nil || p.re == nil {
		return name != ""
	}
	return p.re.MatchString(name)
}

// FromFile parses one .eml file into an EmailRecord. The record id comes
// from the file name.
func FromFile(path string, pattern *NamePattern) (*core.EmailRecord, error) {
	m := idPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return nil, fmt.Errorf("cannot derive email id from file name %q", filepath.Base(path))
	}
	id := m[1]

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	w := &walker{pattern: pattern}
	header := make(textproto.MIMEHeader, len(msg.Header))
	for k, v := range msg.Header {
		header[k] = v
	}
	if err := w.walk(header, msg.Body); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", filepath.Base(path), err)
	}

	names := make([]string, 0, len(w.names))
	for name := range w.names {
		names = append(names, name)
	}
	sort.Strings(names)

	return &core.EmailRecord{
		ID:                  id,
		HTMLBody:            w.html,
		AttachmentFilenames: names,
	}, nil
}

// LoadDir parses every .eml file in dir, sorted by name. Unparsable files
// are logged and skipped so one broken email never blocks the corpus.
func LoadDir(dir string, pattern *NamePattern, logger *zap.Logger) ([]*core.EmailRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var records []*core.EmailRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".eml") {
			continue
		}
		rec, err := FromFile(filepath.Join(dir, entry.Name()), pattern)
		if err != nil {
			logger.Warn("Skipping unparsable email file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// walker accumulates the first text/html body and the gated part filenames
// while recursing through MIME parts.
type walker struct {
	pattern *NamePattern
	html    string
	names   map[string]bool
}

func (w *walker) walk(header textproto.MIMEHeader, body io.Reader) error {
	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// A torn part ends this subtree; keep what was collected.
				return nil
			}
			if err := w.walk(textproto.MIMEHeader(part.Header), part); err != nil {
				return err
			}
		}
	}

	if mediaType == "text/html" {
		if w.html == "" {
			text, err := decodeText(header, body, params["charset"])
			if err != nil {
				return err
			}
			w.html = text
		}
		return nil
	}

	name := partFilename(header)
	if w.pattern.Match(name) {
		if w.names == nil {
			w.names = make(map[string]bool)
		}
		w.names[name] = true
	}
	return nil
}

// partFilename pulls a filename from Content-Disposition, falling back to
// the Content-Type name parameter.
func partFilename(header textproto.MIMEHeader) string {
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return decodeRFC2047(name)
			}
		}
	}
	if ct := header.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			if name := params["name"]; name != "" {
				return decodeRFC2047(name)
			}
		}
	}
	return ""
}

func decodeRFC2047(s string) string {
	dec := new(mime.WordDecoder)
	if decoded, err := dec.DecodeHeader(s); err == nil {
		return decoded
	}
	return s
}

// decodeText applies the transfer encoding and charset, falling back to the
// raw bytes when either is unknown.
func decodeText(header textproto.MIMEHeader, body io.Reader, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if enc, err := htmlindex.Get(charset); err == nil {
			body = enc.NewDecoder().Reader(body)
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
