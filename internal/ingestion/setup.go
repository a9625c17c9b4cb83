package ingestion

import (
	"sync"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

type ISetup interface {
	build() (models.SetupReturn, error)
}

type Setup struct{}

// Instantiate all channels and data structure we will use in the concurrent cleaning run
// Its useful to have it in a separated struct to be able to leverage DI for testing
func (h Setup) build() (models.SetupReturn, error) {
	channels := models.ExtractionChannels{
		Results: make(chan models.FileResult, 100),
		Errors:  make(chan models.AppError, 100),
		Jobs:    make(chan models.FileProcessingJob, 100),
	}

	var fileWg, mainWg sync.WaitGroup
	results := make([]models.FileResult, 0)
	fileErrorsMap := models.FileErrorMap{Errors: make(map[string][]models.AppError)}
	return models.SetupReturn{
		Channels:      &channels,
		WaitGroups:    &models.ExtractionWaitGroups{FileWg: &fileWg, MainWg: &mainWg},
		FileErrorsMap: &fileErrorsMap,
		Results:       &results,
	}, nil
}
