package biz

import (
	"github.com/google/wire"

	"videomoderation/internal/pkg/dataset"
	"videomoderation/internal/pkg/moderator"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewModerationUsecase,
	NewDatasetUsecase,
	wire.Bind(new(moderator.VideoModerator), new(*moderator.LocalVideoModerator)),
	wire.Bind(new(FrameModerator), new(*moderator.LocalFrameModerator)),
	wire.Bind(new(DatasetBuilder), new(*dataset.Builder)),
)
