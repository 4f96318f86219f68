package dataset

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const DiagnosisDepression = "Major Depressive Disorder"

var (
	GeneratedColumns = []string{"PatientID", "Age", "Gender", "Duration(weeks)", "Severity", "Symptoms", "Diagnosis", "Treatment"}

	severities = []string{"Mild", "Moderate", "Severe"}
	genders    = []string{"Male", "Female", "Other"}
	symptoms   = []string{"Sadness", "Anxiety", "Fatigue", "Insomnia", "Loss of appetite", "Irritability"}
	treatments = []string{"Cognitive Behavioral Therapy", "Medication", "Combination therapy", "No treatment"}
)

// Generate builds a synthetic patient table. The same rnd seed yields the same table.
func Generate(n int, rnd *rand.Rand) *Dataset {
	records := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := uuid.NewRandomFromReader(rnd)
		if err != nil {
			id = uuid.New()
		}
		age := 18 + rnd.Intn(63)
		duration := 1 + rnd.Intn(52)

		k := 2 + rnd.Intn(4)
		picked := make([]string, 0, k)
		for _, j := range rnd.Perm(len(symptoms))[:k] {
			picked = append(picked, symptoms[j])
		}

		diagnosis := "No Depression"
		if rnd.Float64() < 0.6 {
			diagnosis = DiagnosisDepression
		}

		records = append(records, []string{
			id.String(),
			strconv.Itoa(age),
			genders[rnd.Intn(len(genders))],
			strconv.Itoa(duration),
			severities[rnd.Intn(len(severities))],
			strings.Join(picked, ", "),
			diagnosis,
			treatments[rnd.Intn(len(treatments))],
		})
	}
	return New(GeneratedColumns, records)
}
