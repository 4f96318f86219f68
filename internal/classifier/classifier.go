package classifier

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"counselor-assistant/internal/dataset"
)

type Severity string

const (
	Mild     Severity = "Mild"
	Moderate Severity = "Moderate"
	Severe   Severity = "Severe"
)

var (
	ErrInvalidInput = errors.New("invalid prediction input")
	ErrNoModel      = errors.New("no trained model and no dataset to train from")
)

// FeatureNames is the column order of the model input, with Severity one-hot encoded.
var FeatureNames = []string{"Age", "Duration(weeks)", "Severity_Mild", "Severity_Moderate", "Severity_Severe"}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mild":
		return Mild, nil
	case "moderate":
		return Moderate, nil
	case "severe":
		return Severe, nil
	}
	return "", fmt.Errorf("%w: severity must be Mild, Moderate or Severe", ErrInvalidInput)
}

type Prediction struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

type Predictor interface {
	Predict(age, durationWeeks int, sev Severity) (Prediction, error)
}

type Sample struct {
	X []float64
	Y int
}

// Features validates the input and encodes it in FeatureNames order.
func Features(age, durationWeeks int, sev Severity) ([]float64, error) {
	if age < 18 || age > 100 {
		return nil, fmt.Errorf("%w: age must be between 18 and 100", ErrInvalidInput)
	}
	if durationWeeks < 1 || durationWeeks > 52 {
		return nil, fmt.Errorf("%w: duration must be between 1 and 52 weeks", ErrInvalidInput)
	}
	return encode(float64(age), float64(durationWeeks), sev)
}

func encode(age, weeks float64, sev Severity) ([]float64, error) {
	x := []float64{age, weeks, 0, 0, 0}
	switch sev {
	case Mild:
		x[2] = 1
	case Moderate:
		x[3] = 1
	case Severe:
		x[4] = 1
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, sev)
	}
	return x, nil
}

// SamplesFromDataset labels rows diagnosed with Major Depressive Disorder as positive.
// Rows with unparsable features are skipped.
func SamplesFromDataset(ds *dataset.Dataset) ([]Sample, error) {
	for _, col := range []string{"Age", "Duration(weeks)", "Severity", "Diagnosis"} {
		if ds.ColumnIndex(col) < 0 {
			return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownColumn, col)
		}
	}
	samples := make([]Sample, 0, ds.Len())
	for _, row := range ds.Rows() {
		ageCell, _ := row.Get("Age")
		weeksCell, _ := row.Get("Duration(weeks)")
		sevCell, _ := row.Get("Severity")
		diag, _ := row.Get("Diagnosis")

		age, err1 := strconv.ParseFloat(strings.TrimSpace(ageCell), 64)
		weeks, err2 := strconv.ParseFloat(strings.TrimSpace(weeksCell), 64)
		sev, err3 := ParseSeverity(sevCell)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		x, err := encode(age, weeks, sev)
		if err != nil {
			continue
		}
		y := 0
		if diag == dataset.DiagnosisDepression {
			y = 1
		}
		samples = append(samples, Sample{X: x, Y: y})
	}
	return samples, nil
}

// Split shuffles deterministically and holds out testFrac of the samples.
func Split(samples []Sample, testFrac float64, seed int64) (train, test []Sample) {
	shuffled := append([]Sample{}, samples...)
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	nTest := int(float64(len(shuffled)) * testFrac)
	return shuffled[nTest:], shuffled[:nTest]
}

func Accuracy(f *Forest, samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		label := 0
		if f.Probability(s.X) >= 0.5 {
			label = 1
		}
		if label == s.Y {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
