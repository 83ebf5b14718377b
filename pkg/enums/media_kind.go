package enums

// MediaKind is the kind of media an asset holds.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindAudio    MediaKind = "audio"
	MediaKindDocument MediaKind = "document"
)

var mediaKinds = newSet("media kind",
	MediaKindImage,
	MediaKindVideo,
	MediaKindAudio,
	MediaKindDocument,
)

// IsValid reports whether the value is known.
func (m MediaKind) IsValid() bool { return mediaKinds.has(m) }

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) { return mediaKinds.parse(value) }
