package cli

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/dataset"
	"counselor-assistant/internal/storage"
)

func NewDatasetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dataset",
		Short: "Work with patient datasets",
	}
}

// NewDatasetGenerateCmd creates the 'dataset generate' command.
func NewDatasetGenerateCmd() *cobra.Command {
	var (
		rows int
		seed int64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic patient dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows <= 0 {
				return fmt.Errorf("--rows must be positive")
			}
			if out == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				out = cfg.DatasetPath
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			ds := dataset.Generate(rows, rand.New(rand.NewSource(seed)))
			if err := storage.WriteFileAtomic(out, ds.WriteCSV); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", ds.Len(), out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 1000, "Number of patients")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default DATASET_PATH)")
	return cmd
}

func NewModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Train and query the depression classifier",
	}
}

// NewModelTrainCmd creates the 'model train' command.
func NewModelTrainCmd() *cobra.Command {
	var (
		datasetPath string
		modelPath   string
		trees       int
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if datasetPath == "" {
				datasetPath = cfg.DatasetPath
			}
			if modelPath == "" {
				modelPath = cfg.ModelPath
			}

			ds, err := dataset.LoadFile(datasetPath)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			opts := classifier.DefaultOptions()
			opts.Trees = trees
			opts.Seed = seed

			forest, report, err := classifier.TrainFromDataset(ds, opts)
			if err != nil {
				return err
			}
			if err := classifier.SaveFile(forest, modelPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trained on %d rows, held-out accuracy %.3f on %d rows\nSaved model to %s\n",
				report.TrainSamples, report.Accuracy, report.TestSamples, modelPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Training CSV (default DATASET_PATH)")
	cmd.Flags().StringVar(&modelPath, "out", "", "Model file (default MODEL_PATH)")
	cmd.Flags().IntVar(&trees, "trees", classifier.DefaultOptions().Trees, "Number of trees")
	cmd.Flags().Int64Var(&seed, "seed", classifier.DefaultOptions().Seed, "Random seed")
	return cmd
}

// NewModelPredictCmd creates the 'model predict' command.
func NewModelPredictCmd() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:     "predict <age> <duration-weeks> <Mild|Moderate|Severe>",
		Short:   "Predict depression risk for one patient",
		Example: `  counselorctl model predict 34 6 Severe`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("age must be an integer: %w", err)
			}
			weeks, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("duration must be an integer: %w", err)
			}
			sev, err := classifier.ParseSeverity(args[2])
			if err != nil {
				return err
			}
			if modelPath == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				modelPath = cfg.ModelPath
			}
			forest, err := classifier.LoadFile(modelPath)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("%w: run 'counselorctl model train' first", classifier.ErrNoModel)
				}
				return err
			}
			p, err := forest.Predict(age, weeks, sev)
			if err != nil {
				return err
			}
			verdict := "no"
			if p.Label == 1 {
				verdict = "yes"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Depression: %s (probability %.2f)\n", verdict, p.Probability)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model file (default MODEL_PATH)")
	return cmd
}
