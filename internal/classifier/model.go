package classifier

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/storage"
)

// TrainReport describes a training run on a held-out split.
type TrainReport struct {
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	Accuracy     float64 `json:"accuracy"`
}

// TrainFromDataset holds out 20% of the rows for scoring.
func TrainFromDataset(ds *dataset.Dataset, opts Options) (*Forest, TrainReport, error) {
	samples, err := SamplesFromDataset(ds)
	if err != nil {
		return nil, TrainReport{}, err
	}
	train, test := Split(samples, 0.2, opts.Seed)
	f, err := Train(train, opts)
	if err != nil {
		return nil, TrainReport{}, err
	}
	return f, TrainReport{TrainSamples: len(train), TestSamples: len(test), Accuracy: Accuracy(f, test)}, nil
}

func SaveFile(f *Forest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, func(w io.Writer) error { return f.Save(w) })
}

func LoadFile(path string) (*Forest, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Load(fh)
}

// LoadOrTrain prefers a saved model and otherwise trains one from the dataset
// and saves it next to modelPath.
func LoadOrTrain(modelPath, datasetPath string) (*Forest, error) {
	f, err := LoadFile(modelPath)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	ds, err := dataset.LoadFile(datasetPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, err
	}
	f, report, err := TrainFromDataset(ds, DefaultOptions())
	if err != nil {
		return nil, err
	}
	logger.Log.Infow("depression model trained", "dataset", datasetPath, "accuracy", report.Accuracy, "train", report.TrainSamples)
	if err := SaveFile(f, modelPath); err != nil {
		logger.Log.Warnw("failed to save trained model", "path", modelPath, "error", err)
	}
	return f, nil
}

// LazyPredictor loads or trains the model on first use, so the service can
// start before a dataset exists. A failed attempt is retried on the next call.
type LazyPredictor struct {
	ModelPath   string
	DatasetPath string

	mu     sync.Mutex
	forest *Forest
}

func (p *LazyPredictor) Predict(age, durationWeeks int, sev Severity) (Prediction, error) {
	p.mu.Lock()
	if p.forest == nil {
		f, err := LoadOrTrain(p.ModelPath, p.DatasetPath)
		if err != nil {
			p.mu.Unlock()
			return Prediction{}, err
		}
		p.forest = f
	}
	f := p.forest
	p.mu.Unlock()
	return f.Predict(age, durationWeeks, sev)
}
