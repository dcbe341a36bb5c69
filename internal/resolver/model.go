// ABOUTME: Track reference and playable media types for the stream resolver
// ABOUTME: Also holds the JSON shapes returned by the streaming API
package resolver

import "strings"

// TrackReference is a user supplied track URL or path.
// A reference split across repeated query values is held as several parts.
type TrackReference struct {
	Parts []string
}

// NewReference builds a reference from one or more parts
func NewReference(parts ...string) TrackReference {
	return TrackReference{Parts: parts}
}

// String returns the cleaned form of the reference
func (r TrackReference) String() string {
	return CleanReference(r.Parts...)
}

// CleanReference joins parts with "/", drops a trailing query string and
// trims leading and trailing slashes.
func CleanReference(parts ...string) string {
	joined := strings.Join(parts, "/")
	if i := strings.Index(joined, "?"); i >= 0 {
		joined = joined[:i]
	}
	return strings.Trim(joined, "/")
}

// PlayableMedia is the resolver output handed to playback
type PlayableMedia struct {
	URI       string
	Segmented bool
	MimeType  string
	Title     string
}

// Protocol names used by transcodings
const (
	ProtocolHLS         = "hls"
	ProtocolProgressive = "progressive"
)

type resolvedTrack struct {
	ID     int64           `json:"id"`
	Kind   string          `json:"kind"`
	Title  string          `json:"title"`
	Media  *trackMedia     `json:"media,omitempty"`
	Tracks []resolvedTrack `json:"tracks,omitempty"`
}

type trackMedia struct {
	Transcodings []transcoding `json:"transcodings"`
}

type transcoding struct {
	URL    string `json:"url"`
	Preset string `json:"preset"`
	Format struct {
		Protocol string `json:"protocol"`
		MimeType string `json:"mime_type"`
	} `json:"format"`
}

type streamLocation struct {
	URL string `json:"url"`
}
