package tokens

import "strings"

// Sphere names used below a situation's path.
const (
	NotesSphere   = "aureatenotessphere"
	StorageSphere = "situationstoragesphere"
	OutputSphere  = "outputsphere"
	CommitSphere  = "commit"

	// NoteElementID is the element id of situation notes.
	NoteElementID = "tlg.note"
)

// Within reports whether path is base itself or lies below it. Containment is
// decided on whole segments, so "~/a/!r3" does not contain "~/a/!r30".
func Within(path, base string) bool {
	if base == "" {
		return false
	}
	base = strings.TrimSuffix(base, "/")
	return path == base || strings.HasPrefix(path, base+"/")
}

// SpherePath strips the last segment of a token path.
func SpherePath(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// ChildPath joins a sphere id below a token path.
func ChildPath(path, sphereID string) string {
	return strings.TrimSuffix(path, "/") + "/" + sphereID
}
