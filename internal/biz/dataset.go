package biz

import (
	"context"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"videomoderation/internal/conf"
	"videomoderation/internal/pkg/dataset"
)

// ReasonInvalidDataset is returned when the dataset directories are unusable.
const ReasonInvalidDataset = "INVALID_DATASET"

// DatasetBuilder writes labelled training frames.
type DatasetBuilder interface {
	Build(ctx context.Context, cfg dataset.Config) (*dataset.Manifest, error)
}

// DatasetUsecase prepares training data from labelled video directories.
type DatasetUsecase struct {
	builder DatasetBuilder
	format  string
	log     *log.Helper
}

// NewDatasetUsecase creates a new DatasetUsecase.
func NewDatasetUsecase(builder DatasetBuilder, c *conf.Dataset, logger log.Logger) *DatasetUsecase {
	return &DatasetUsecase{
		builder: builder,
		format:  c.Format,
		log:     log.NewHelper(logger),
	}
}

// Build extracts frames from violenceDir and nonViolenceDir into outDir. maxPerClass caps the
// videos taken from each directory; 0 takes all.
func (uc *DatasetUsecase) Build(ctx context.Context, violenceDir, nonViolenceDir, outDir string, maxPerClass int) (*dataset.Manifest, error) {
	if violenceDir == "" || nonViolenceDir == "" || outDir == "" {
		return nil, kerrors.BadRequest(ReasonInvalidDataset, "violence, nonviolence and output directories are required")
	}
	if maxPerClass < 0 {
		return nil, kerrors.BadRequest(ReasonInvalidDataset, "max videos per class must not be negative")
	}

	m, err := uc.builder.Build(ctx, dataset.Config{
		ViolenceDir:       violenceDir,
		NonViolenceDir:    nonViolenceDir,
		OutDir:            outDir,
		MaxVideosPerClass: maxPerClass,
		Format:            uc.format,
	})
	if err != nil {
		return nil, kerrors.BadRequest(ReasonInvalidDataset, err.Error()).WithCause(err)
	}
	if len(m.Failed) > 0 {
		uc.log.Warnf("%d videos could not be decoded", len(m.Failed))
	}
	return m, nil
}
