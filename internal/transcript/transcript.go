package transcript

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// ArchiveName returns the object name an upload is archived under:
// <date>/<sanitized-stem>-<time>-<suffix><ext>.
func ArchiveName(sourceFileName string, ts time.Time, suffix string) string {
	base := path.Base(strings.ReplaceAll(sourceFileName, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	ext := strings.ToLower(path.Ext(base))
	if len(ext) < 2 || unsafeChars.MatchString(ext[1:]) {
		ext = ""
	}

	ts = ts.UTC()
	name := fmt.Sprintf("%s-%s", sanitizeName(stem), ts.Format("150405"))
	if suffix != "" {
		name += "-" + sanitizeName(suffix)
	}
	return ts.Format("2006/01/02") + "/" + name + ext
}
