//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"videomoderation/internal/biz"
	"videomoderation/internal/conf"
	"videomoderation/internal/data"
)

// wireAnalyze init the video moderation use case.
func wireAnalyze(*conf.Classifier, *conf.Sampler, *conf.Data, *conf.Cache, *conf.Analyze, log.Logger) (*biz.ModerationUsecase, func(), error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet))
}

// wireDataset init the dataset use case.
func wireDataset(*conf.Sampler, *conf.Dataset, log.Logger) (*biz.DatasetUsecase, error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet))
}
