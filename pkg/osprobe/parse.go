package osprobe

import (
	"regexp"
	"strings"
)

var (
	lsbFileStyleID       = regexp.MustCompile(`(?im)^DISTRIB_ID=(.+)$`)
	lsbFileStyleRelease  = regexp.MustCompile(`(?im)^DISTRIB_RELEASE=(.+)$`)
	lsbFileStyleCodename = regexp.MustCompile(`(?im)^DISTRIB_CODENAME=(.+)$`)
	lsbCmdStyleID        = regexp.MustCompile(`(?im)^Distributor ID:\s*(.+)$`)
	lsbCmdStyleRelease   = regexp.MustCompile(`(?im)^Release:\s*(.+)$`)
	lsbCmdStyleCodename  = regexp.MustCompile(`(?im)^Codename:\s*(.+)$`)
)

// parseLSB handles both the DISTRIB_* file format and the
// "Distributor ID:" command-output format that some distros write to
// the same paths.
func parseLSB(content string) (Descriptor, bool) {
	name := firstMatch(lsbFileStyleID, content)
	if name == "" {
		name = firstMatch(lsbCmdStyleID, content)
	}
	release := firstMatch(lsbFileStyleRelease, content)
	if release == "" {
		release = firstMatch(lsbCmdStyleRelease, content)
	}
	codename := firstMatch(lsbFileStyleCodename, content)
	if codename == "" {
		codename = firstMatch(lsbCmdStyleCodename, content)
	}

	if name == "" {
		return Descriptor{}, false
	}
	return Descriptor{
		Distro:   normalizeDistro(name),
		Release:  strings.TrimSpace(release),
		Codename: normalizeDistro(codename),
	}, true
}

var osReleaseLine = regexp.MustCompile(`(?m)^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// parseOSRelease handles the freedesktop.org os-release key=value
// format, additionally capturing ID_LIKE as a whitespace-split ordered
// sequence.
func parseOSRelease(content string) (Descriptor, bool) {
	values := make(map[string]string)
	for _, m := range osReleaseLine.FindAllStringSubmatch(content, -1) {
		key, raw := m[1], m[2]
		values[key] = unquote(raw)
	}

	id := values["ID"]
	if id == "" {
		return Descriptor{}, false
	}

	var idLike []string
	if raw := values["ID_LIKE"]; raw != "" {
		idLike = strings.Fields(raw)
	}

	return Descriptor{
		Distro:   normalizeDistro(id),
		Release:  values["VERSION_ID"],
		Codename: normalizeDistro(values["VERSION_CODENAME"]),
		IDLike:   idLike,
	}, true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func firstMatch(re *regexp.Regexp, content string) string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
