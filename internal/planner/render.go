package planner

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	"browser-pilot/internal/entity"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	maxRenderedElements = 40
	maxTextLength       = 120
	maxImageWidth       = 1024
)

// renderObservation flattens an observation into the compact text the model
// reads: page identity, prior-action feedback, then the element inventory
// with candidate lists in priority order.
func renderObservation(obs *entity.Observation, feedback string) string {
	var b strings.Builder

	if feedback != "" {
		b.WriteString(fmt.Sprintf("Previous action: %s\n\n", feedback))
	}

	b.WriteString(fmt.Sprintf("URL: %s\n", obs.URL))
	b.WriteString(fmt.Sprintf("Title: %s\n", obs.Title))
	b.WriteString(fmt.Sprintf("Scope: %s\n\n", obs.Scope))

	if len(obs.Elements) == 0 {
		b.WriteString("No matching elements.\n")

		return b.String()
	}

	b.WriteString("Elements:\n")

	for i, el := range obs.Elements {
		if i >= maxRenderedElements {
			b.WriteString(fmt.Sprintf("... and %d more\n", len(obs.Elements)-i))

			break
		}

		text := el.Text
		if runes := []rune(text); len(runes) > maxTextLength {
			text = string(runes[:maxTextLength]) + "..."
		}

		b.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, el.Kind, text))

		if el.Required {
			b.WriteString(" (required)")
		}

		if !el.Visible {
			b.WriteString(" (hidden)")
		}

		b.WriteString(fmt.Sprintf(" | selectors: %s\n", strings.Join(el.Selectors, ", ")))
	}

	return b.String()
}

// downscale shrinks wide screenshots before base64 embedding to keep the
// request payload small. On any decode failure the original bytes pass
// through untouched.
func downscale(data []byte, logger *zap.Logger) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warn("Screenshot decode failed, sending original", zap.Error(err))

		return data
	}

	if img.Bounds().Dx() <= maxImageWidth {
		return data
	}

	resized := imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 70}); err != nil {
		logger.Warn("Screenshot encode failed, sending original", zap.Error(err))

		return data
	}

	return buf.Bytes()
}
