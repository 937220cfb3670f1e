package collect

import "strings"

// ImageRef is a parsed container image reference.
type ImageRef struct {
	Registry   string
	Repository string
	Tag        string // empty when the reference carries no tag
	Digest     string
}

// ParseImage splits an image reference.
// Examples:
//
//	nginx                      → docker.io, nginx, ""
//	nginx:latest               → docker.io, nginx, latest
//	myregistry.io:5000/app:v1  → myregistry.io:5000, app, v1
//	ghcr.io/org/image@sha256:… → ghcr.io, org/image, "", sha256:…
func ParseImage(image string) ImageRef {
	ref := ImageRef{}
	name := image
	if i := strings.Index(name, "@"); i >= 0 {
		ref.Digest = name[i+1:]
		name = name[:i]
	}
	// A colon after the last slash is a tag; before it, a registry port.
	if i := strings.LastIndex(name, ":"); i >= 0 && i > strings.LastIndex(name, "/") {
		ref.Tag = name[i+1:]
		name = name[:i]
	}

	parts := strings.SplitN(name, "/", 2)
	if len(parts) == 1 {
		ref.Registry = "docker.io"
		ref.Repository = name
		return ref
	}
	first := parts[0]
	// Registry hostnames contain a dot or colon or are "localhost"
	if strings.ContainsAny(first, ".:") || first == "localhost" {
		ref.Registry = first
		ref.Repository = parts[1]
		return ref
	}
	ref.Registry = "docker.io"
	ref.Repository = name
	return ref
}

// UsesLatest reports whether the image floats: an explicit :latest tag, or
// neither tag nor digest.
func (r ImageRef) UsesLatest() bool {
	if r.Tag == "latest" {
		return true
	}
	return r.Tag == "" && r.Digest == ""
}
