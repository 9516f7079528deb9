package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/spf13/cobra"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Show or extend the platform settings in platforms.yml",
	Run: func(cmd *cobra.Command, args []string) {
		platforms, err := config.LoadPlatforms()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		extractor.DefaultRegistry.ApplyOverrides(platforms)
		printPlatforms(os.Stdout, extractor.DefaultRegistry)
	},
}

var addDomainCmd = &cobra.Command{
	Use:     "add-domain <platform> <domain>",
	Short:   "Allow an extra media CDN domain for a platform",
	Example: "  unmark platforms add-domain douyin douyincdn.com",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := extractor.ParsePlatform(args[0])
		if platform == extractor.PlatformUnknown {
			return fmt.Errorf("unknown platform %q (use xiaohongshu or douyin)", args[0])
		}
		domain := strings.ToLower(strings.TrimSpace(args[1]))
		if domain == "" {
			return fmt.Errorf("domain must not be empty")
		}

		platforms, err := config.LoadPlatforms()
		if err != nil {
			return err
		}
		if platforms == nil {
			platforms = &config.PlatformsConfig{}
		}
		platforms.AddMediaDomain(string(platform), domain)
		if err := config.SavePlatforms(platforms); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s in %s\n", domain, platform, config.PlatformsFileName)
		return nil
	},
}

var whichCmd = &cobra.Command{
	Use:   "which <url-or-host>",
	Short: "Print the platform a host belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = u.Hostname()
		}

		platforms, err := config.LoadPlatforms()
		if err != nil {
			return err
		}
		if o := platforms.Match(host); o != nil {
			fmt.Printf("%s (%s)\n", extractor.ParsePlatform(o.Platform), config.PlatformsFileName)
			return nil
		}
		extractor.DefaultRegistry.ApplyOverrides(platforms)
		fmt.Println(extractor.DefaultRegistry.Detect(host))
		return nil
	},
}

func init() {
	platformsCmd.AddCommand(addDomainCmd)
	platformsCmd.AddCommand(whichCmd)
	rootCmd.AddCommand(platformsCmd)
}

func printPlatforms(w io.Writer, r *extractor.Registry) {
	bold := color.New(color.Bold)
	for _, platform := range []extractor.Platform{extractor.PlatformXiaohongshu, extractor.PlatformDouyin} {
		p := r.Profile(platform)
		bold.Fprintln(w, platform)
		fmt.Fprintf(w, "  hosts:             %s\n", strings.Join(p.Hosts, ", "))
		fmt.Fprintf(w, "  short link hosts:  %s\n", strings.Join(p.ShortLinkHosts, ", "))
		fmt.Fprintf(w, "  media domains:     %s\n", strings.Join(p.MediaDomains, ", "))
		fmt.Fprintf(w, "  watermark markers: %s\n", strings.Join(p.WatermarkMarkers, ", "))
	}
}
