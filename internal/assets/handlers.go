package assets

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// Metadata is the archival document uploaded for every mint.
type Metadata struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Image        string      `json:"image,omitempty"`
	AnimationURL string      `json:"animation_url,omitempty"`
	ExternalURL  string      `json:"external_url,omitempty"`
	Attributes   []Attribute `json:"attributes"`
	Properties   Properties  `json:"properties"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type Properties struct {
	Category      string `json:"category"`
	AssetID       string `json:"asset_id"`
	SchemaVersion int    `json:"schema_version"`
	Files         []File `json:"files"`
}

type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Handler holds the archival behaviour of one media kind.
type Handler struct {
	Kind     enums.MediaKind
	Category string
	// UploadsContent reports whether the asset bytes go to the storage network before
	// the metadata document.
	UploadsContent bool
	place          func(m *Metadata, uri string)
}

var handlers = map[enums.MediaKind]Handler{
	enums.MediaKindImage: {
		Kind:           enums.MediaKindImage,
		Category:       "image",
		UploadsContent: true,
		place:          func(m *Metadata, uri string) { m.Image = uri },
	},
	enums.MediaKindVideo: {
		Kind:     enums.MediaKindVideo,
		Category: "video",
		place:    func(m *Metadata, uri string) { m.AnimationURL = uri },
	},
	enums.MediaKindAudio: {
		Kind:     enums.MediaKindAudio,
		Category: "audio",
		place:    func(m *Metadata, uri string) { m.AnimationURL = uri },
	},
	enums.MediaKindDocument: {
		Kind:     enums.MediaKindDocument,
		Category: "document",
		place:    func(m *Metadata, uri string) { m.ExternalURL = uri },
	},
}

// HandlerFor returns the handler registered for kind.
func HandlerFor(kind enums.MediaKind) (Handler, error) {
	h, ok := handlers[kind]
	if !ok {
		return Handler{}, fmt.Errorf("no archival handler for media kind %q", kind)
	}
	return h, nil
}

// BuildMetadata assembles the metadata document. contentURI points at the asset bytes:
// the permanent copy for kinds that upload content, the stored original otherwise.
func (h Handler) BuildMetadata(asset *models.Asset, contentURI string) (*Metadata, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset is required")
	}
	if contentURI == "" {
		contentURI = asset.StorageURL
	}
	attrs, err := decodeAttributes(asset.Attributes)
	if err != nil {
		return nil, err
	}
	m := &Metadata{
		Name:       asset.Name,
		Attributes: attrs,
		Properties: Properties{
			Category:      h.Category,
			AssetID:       asset.ID.String(),
			SchemaVersion: models.CurrentSchemaVersion,
			Files:         []File{{URI: contentURI, Type: asset.MimeType}},
		},
	}
	if asset.Description != nil {
		m.Description = *asset.Description
	}
	h.place(m, contentURI)
	return m, nil
}

// decodeAttributes accepts an object of trait => value or a list of attributes.
func decodeAttributes(raw []byte) ([]Attribute, error) {
	out := []Attribute{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var list []Attribute
	if err := json.Unmarshal(raw, &list); err == nil {
		return append(out, list...), nil
	}
	var object map[string]any
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, fmt.Errorf("decode asset attributes: %w", err)
	}
	keys := make([]string, 0, len(object))
	for k := range object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Attribute{TraitType: k, Value: object[k]})
	}
	return out, nil
}
