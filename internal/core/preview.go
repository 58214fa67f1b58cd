package core

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/reviewdesk/internal/backend/database"
)

// Preview renders an image of the folder as a browser displayable PNG. An
// error means the image cannot be shown to the reviewer.
func (service *CoreService) Preview(name string) ([]byte, error) {
	data, img, err := service.images.Read(name)
	if err != nil {
		return nil, err
	}

	key := database.PreviewKey(img.Name, img.Size, img.ModTime, service.signature)
	if service.databaseService != nil {
		cached, err := service.databaseService.GetPreview(key)
		if err != nil {
			slog.Warn("preview cache lookup failed", "image", name, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	preview, err := service.pipeline.Execute(data)
	if err != nil {
		return nil, fmt.Errorf("cannot open image %s: %w", name, err)
	}

	if service.databaseService != nil {
		if err := service.databaseService.SetPreview(key, preview); err != nil {
			slog.Warn("failed to cache preview", "image", name, "error", err)
		}
	}
	return preview, nil
}
