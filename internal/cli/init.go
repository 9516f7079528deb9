package cli

import (
	"fmt"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/i18n"
	"github.com/spf13/cobra"
)

var initPlatforms bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create unmark config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := i18n.T(config.LoadOrDefault().Language)

		if config.Exists() {
			fmt.Printf(t.CLI.ConfigExist+"\n", config.SavePath())
		} else {
			if err := config.Init(); err != nil {
				return err
			}
			fmt.Printf(t.CLI.ConfigSaved+"\n", config.SavePath())
		}

		if initPlatforms && !config.PlatformsExist() {
			if err := config.SavePlatforms(samplePlatforms()); err != nil {
				return err
			}
			fmt.Printf(t.CLI.ConfigSaved+"\n", config.PlatformsFileName)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initPlatforms, "platforms", false, "also write a sample platforms.yml in the current directory")
	rootCmd.AddCommand(initCmd)
}

func samplePlatforms() *config.PlatformsConfig {
	return &config.PlatformsConfig{
		Platforms: []config.PlatformOverride{
			{Platform: "xiaohongshu"},
			{Platform: "douyin"},
		},
	}
}
