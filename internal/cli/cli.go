package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"counselor-assistant/internal/config"
)

// loadConfig is swapped in tests.
var loadConfig = config.New

// NewRootCmd assembles the counselorctl command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "counselorctl",
		Short:         "Operator tool for the counselor assistant",
		Long:          `counselorctl manages accounts, inspects the interaction log and trains the depression classifier. Paths come from the same environment variables as the services.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	userCmd := NewUserCmd()
	userCmd.AddCommand(NewUserAddCmd())
	userCmd.AddCommand(NewUserListCmd())
	root.AddCommand(userCmd)

	root.AddCommand(NewStatsCmd())
	root.AddCommand(NewHistoryCmd())

	datasetCmd := NewDatasetCmd()
	datasetCmd.AddCommand(NewDatasetGenerateCmd())
	root.AddCommand(datasetCmd)

	modelCmd := NewModelCmd()
	modelCmd.AddCommand(NewModelTrainCmd())
	modelCmd.AddCommand(NewModelPredictCmd())
	root.AddCommand(modelCmd)

	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
