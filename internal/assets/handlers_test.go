package assets

import (
	"testing"

	"github.com/angelmondragon/archivemint-backend/pkg/db/models"
	"github.com/angelmondragon/archivemint-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func TestHandlerForEveryKind(t *testing.T) {
	for _, kind := range []enums.MediaKind{enums.MediaKindImage, enums.MediaKindVideo, enums.MediaKindAudio, enums.MediaKindDocument} {
		h, err := HandlerFor(kind)
		if err != nil {
			t.Fatalf("kind %s: %v", kind, err)
		}
		if h.Kind != kind {
			t.Fatalf("kind %s: handler registered for %s", kind, h.Kind)
		}
		if h.UploadsContent != (kind == enums.MediaKindImage) {
			t.Fatalf("kind %s: unexpected UploadsContent=%v", kind, h.UploadsContent)
		}
	}
	if _, err := HandlerFor("hologram"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestBuildMetadataPlacesContent(t *testing.T) {
	desc := "sunset over the bay"
	asset := &models.Asset{
		ID:          uuid.New(),
		Name:        "Sunset",
		Description: &desc,
		MimeType:    "image/png",
		StorageURL:  "https://storage.googleapis.com/bucket/sunset.png",
		Attributes:  datatypes.JSON(`{"palette":"warm","year":2024}`),
	}

	image, _ := HandlerFor(enums.MediaKindImage)
	m, err := image.BuildMetadata(asset, "https://arweave.net/content-tx")
	if err != nil {
		t.Fatalf("build metadata: %v", err)
	}
	if m.Image != "https://arweave.net/content-tx" || m.AnimationURL != "" {
		t.Fatalf("unexpected image placement %+v", m)
	}
	if len(m.Attributes) != 2 || m.Attributes[0].TraitType != "palette" || m.Attributes[1].TraitType != "year" {
		t.Fatalf("expected sorted attributes, got %+v", m.Attributes)
	}
	if m.Description != desc || m.Properties.AssetID != asset.ID.String() {
		t.Fatalf("unexpected metadata %+v", m)
	}

	audio, _ := HandlerFor(enums.MediaKindAudio)
	asset.MimeType = "audio/mpeg"
	asset.Attributes = nil
	m, err = audio.BuildMetadata(asset, "")
	if err != nil {
		t.Fatalf("build metadata: %v", err)
	}
	if m.AnimationURL != asset.StorageURL || m.Image != "" {
		t.Fatalf("expected audio to reference stored original, got %+v", m)
	}
	if m.Attributes == nil || len(m.Attributes) != 0 {
		t.Fatalf("expected empty attribute list, got %+v", m.Attributes)
	}
}

func TestBuildMetadataRejectsMalformedAttributes(t *testing.T) {
	h, _ := HandlerFor(enums.MediaKindDocument)
	_, err := h.BuildMetadata(&models.Asset{Name: "Deed", StorageURL: "gs://b/deed.pdf", Attributes: datatypes.JSON(`"oops"`)}, "")
	if err == nil {
		t.Fatal("expected malformed attributes to fail")
	}
}
