package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/archive"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
)

func newPublishCommand() *cobra.Command {
	var name, description string

	publishCommand := &cobra.Command{
		Use:   "publish <zip file or folder>",
		Short: "Publish a ZIP bundle or a site folder as a new lead magnet",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			archiveBytes, err := readArchiveInput(args[0])
			if err != nil {
				return err
			}

			app, err := bootstrap(command.Context())
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.publisher.Publish(command.Context(), publish.Request{
				ArchiveBytes: archiveBytes,
				Name:         name,
				Description:  description,
			})
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	publishCommand.Flags().StringVar(&name, "name", "", "lead magnet name, the slug is derived from it (required)")
	publishCommand.Flags().StringVar(&description, "description", "", "optional description shown in the admin listing")
	publishCommand.MarkFlagRequired("name") // nolint:errcheck -- the flag is defined right above

	return publishCommand
}

// readArchiveInput returns ZIP bytes for a path: a .zip file is read as is,
// a folder is packed in memory so it goes through the same normalization as an upload.
func readArchiveInput(inputPath string) ([]byte, error) {
	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %q: %w", inputPath, err)
	}

	if inputInfo.IsDir() {
		return archive.ZipDirectory(inputPath)
	}

	if !strings.HasSuffix(strings.ToLower(inputPath), ".zip") {
		return nil, fmt.Errorf("%q is neither a folder nor a .zip file", inputPath)
	}
	return os.ReadFile(inputPath)
}
