package manifest

import (
	"bytes"
	"path"
	"regexp"
	"strings"
)

var xmlnsAttr = regexp.MustCompile(`xmlns="[^"]*"`)

// Serialize writes the MPD as UTF-8 with an XML declaration. When
// fixNamespace is set, the root element's namespace is forced to
// DefaultNamespace regardless of what the library's encoder produced; this
// mirrors the source's "no DOM round-trip" targeted string substitution
// rather than re-encoding through a different tree.
func (mdl *Model) Serialize(fixNamespace bool) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := mdl.MPD.Write(&buf, "  ", true); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if fixNamespace {
		out = xmlnsAttr.ReplaceAll(out, []byte(`xmlns="`+DefaultNamespace+`"`))
	}
	return out, nil
}

// MuxedName inserts "_mux" before the file extension, e.g. "stream.mpd" ->
// "stream_mux.mpd". Used for the manifest name written alongside a
// multiplexed output.
func MuxedName(name string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_mux" + ext
}
