package classifier

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselor-assistant/internal/dataset"
)

func separable(n int, seed int64) []Sample {
	rnd := rand.New(rand.NewSource(seed))
	sevs := []Severity{Mild, Moderate, Severe}
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		age := 18 + rnd.Intn(63)
		x, _ := encode(float64(age), float64(1+rnd.Intn(52)), sevs[rnd.Intn(3)])
		y := 0
		if age > 50 {
			y = 1
		}
		out = append(out, Sample{X: x, Y: y})
	}
	return out
}

func TestForest_LearnsSeparableData(t *testing.T) {
	train, test := Split(separable(400, 1), 0.25, 42)
	assert.Len(t, test, 100)

	f, err := Train(train, Options{Trees: 15, MaxDepth: 6, Seed: 42})
	require.NoError(t, err)
	assert.Greater(t, Accuracy(f, test), 0.9)

	old, err := f.Predict(70, 10, Mild)
	require.NoError(t, err)
	assert.Equal(t, 1, old.Label)
	young, err := f.Predict(20, 10, Mild)
	require.NoError(t, err)
	assert.Equal(t, 0, young.Label)
	assert.True(t, young.Probability >= 0 && young.Probability <= 1)
}

func TestForest_Deterministic(t *testing.T) {
	samples := separable(100, 3)
	a, err := Train(samples, Options{Trees: 5, MaxDepth: 4, Seed: 9})
	require.NoError(t, err)
	b, err := Train(samples, Options{Trees: 5, MaxDepth: 4, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForest_SaveLoad(t *testing.T) {
	f, err := Train(separable(100, 5), Options{Trees: 5, MaxDepth: 4, Seed: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	p1, _ := f.Predict(35, 12, Moderate)
	p2, _ := loaded.Predict(35, 12, Moderate)
	assert.Equal(t, p1, p2)

	_, err = Load(bytes.NewBufferString(`{"trees":[]}`))
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedTrees(t *testing.T) {
	features := `"features":["Age","Duration(weeks)","Severity_Mild","Severity_Moderate","Severity_Severe"]`
	for name, trees := range map[string]string{
		"empty nodes":     `[{"nodes":[]}]`,
		"child past end":  `[{"nodes":[{"f":0,"t":30,"l":1,"r":5}]}]`,
		"self loop":       `[{"nodes":[{"f":0,"t":30,"l":0,"r":0}]}]`,
		"bad feature":     `[{"nodes":[{"f":9,"t":30,"l":1,"r":2},{"l":-1,"r":-1,"p":0},{"l":-1,"r":-1,"p":1}]}]`,
		"bad probability": `[{"nodes":[{"l":-1,"r":-1,"p":2}]}]`,
	} {
		_, err := Load(bytes.NewBufferString(`{` + features + `,"trees":` + trees + `}`))
		assert.Error(t, err, name)
	}

	_, err := Load(bytes.NewBufferString(`{"features":["Age"],"trees":[{"nodes":[{"l":-1,"r":-1,"p":1}]}]}`))
	assert.Error(t, err)

	ok := `{` + features + `,"trees":[{"nodes":[{"f":0,"t":50,"l":1,"r":2},{"l":-1,"r":-1,"p":0},{"l":-1,"r":-1,"p":1}]}]}`
	f, err := Load(bytes.NewBufferString(ok))
	require.NoError(t, err)
	p, err := f.Predict(70, 10, Mild)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Label)
}

func TestPredict_InvalidInput(t *testing.T) {
	f, err := Train(separable(50, 2), Options{Trees: 3, MaxDepth: 3, Seed: 1})
	require.NoError(t, err)

	for _, tc := range []struct {
		age, weeks int
		sev        Severity
	}{
		{17, 10, Mild},
		{101, 10, Mild},
		{30, 0, Mild},
		{30, 53, Mild},
		{30, 10, "Extreme"},
	} {
		_, err := f.Predict(tc.age, tc.weeks, tc.sev)
		assert.True(t, errors.Is(err, ErrInvalidInput), "%+v", tc)
	}

	_, err = ParseSeverity("SEVERE")
	assert.NoError(t, err)
	_, err = ParseSeverity("bad")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSamplesFromDataset(t *testing.T) {
	ds := dataset.Generate(50, rand.New(rand.NewSource(1)))
	samples, err := SamplesFromDataset(ds)
	require.NoError(t, err)
	require.Len(t, samples, 50)
	for _, s := range samples {
		assert.Len(t, s.X, len(FeatureNames))
		assert.Equal(t, 1.0, s.X[2]+s.X[3]+s.X[4])
	}

	bad := dataset.New([]string{"Age"}, [][]string{{"30"}})
	_, err = SamplesFromDataset(bad)
	assert.True(t, errors.Is(err, dataset.ErrUnknownColumn))
}

func TestLoadOrTrain(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "models", "model.json")
	datasetPath := filepath.Join(dir, "data.csv")

	_, err := LoadOrTrain(modelPath, datasetPath)
	assert.True(t, errors.Is(err, ErrNoModel))

	ds := dataset.Generate(120, rand.New(rand.NewSource(4)))
	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))
	require.NoError(t, os.WriteFile(datasetPath, buf.Bytes(), 0o644))

	f, err := LoadOrTrain(modelPath, datasetPath)
	require.NoError(t, err)

	saved, err := LoadFile(modelPath)
	require.NoError(t, err)
	p1, _ := f.Predict(40, 20, Severe)
	p2, _ := saved.Predict(40, 20, Severe)
	assert.Equal(t, p1, p2)
}

func TestLazyPredictor(t *testing.T) {
	dir := t.TempDir()
	p := &LazyPredictor{ModelPath: filepath.Join(dir, "model.json"), DatasetPath: filepath.Join(dir, "data.csv")}

	_, err := p.Predict(30, 10, Mild)
	assert.True(t, errors.Is(err, ErrNoModel))

	var buf bytes.Buffer
	require.NoError(t, dataset.Generate(80, rand.New(rand.NewSource(2))).WriteCSV(&buf))
	require.NoError(t, os.WriteFile(p.DatasetPath, buf.Bytes(), 0o644))

	pred, err := p.Predict(30, 10, Mild)
	require.NoError(t, err)
	assert.True(t, pred.Probability >= 0 && pred.Probability <= 1)
}
