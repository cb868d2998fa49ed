package storage

import (
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"pdf":  {},
}

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {},
}

// Ext returns the lowercased text after the last dot, or "" when there is none.
func Ext(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// Allowed reports whether filename carries an accepted extension.
func Allowed(filename string) bool {
	if !strings.Contains(filename, ".") {
		return false
	}
	_, ok := AllowedExtensions[Ext(filename)]
	return ok
}

// IsPDF reports whether name ends in .pdf, ignoring case.
func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// DerivedImageName replaces the last extension of name with .jpg.
func DerivedImageName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return name + ".jpg"
}

// SecureFilename turns an uploaded filename into a flat ASCII name that is
// safe to join to the upload directory. The result may be empty. On Windows,
// reserved device names get a leading underscore.
func SecureFilename(name string) string {
	return secureFilename(name, runtime.GOOS == "windows")
}

func secureFilename(name string, windows bool) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = reUnsafe.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if windows && name != "" {
		base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if _, reserved := windowsDeviceNames[base]; reserved {
			name = "_" + name
		}
	}
	return name
}
