package client

import (
	"context"

	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// VisionClient talks to a vision language model server
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	SuggestPreset(ctx context.Context, model, prompt, imgB64 string) (*types.Suggestion, error)
}
