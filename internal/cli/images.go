package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nous-labs/folio/pkg/gallery"
)

const manifestTimeout = 15 * time.Second

func newImagesCommand(opts *rootOptions) *cobra.Command {
	var (
		prefix   string
		limit    int
		manifest string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "list gallery images from the bucket or a published manifest",
		Example: `  folio images --prefix 2024/ --limit 20
  folio images --manifest https://images.example.com/ --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				urls []string
				err  error
			)
			if manifest != "" {
				client := &http.Client{Timeout: manifestTimeout}
				urls, err = gallery.FetchManifest(cmd.Context(), client, manifest)
			} else {
				urls, err = listBucket(cmd, opts, prefix, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"images": urls, "count": len(urls)})
			}
			for _, u := range urls {
				fmt.Fprintln(out, u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only keys under this prefix")
	cmd.Flags().IntVar(&limit, "limit", gallery.MaxPageSize, "page size per bucket request")
	cmd.Flags().StringVar(&manifest, "manifest", "", "read a published JSON manifest at this URL instead of the bucket")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the gallery JSON response")
	return cmd
}

func listBucket(cmd *cobra.Command, opts *rootOptions, prefix string, limit int) ([]string, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Gallery.Enabled {
		return nil, errors.New("gallery is not configured (set R2_BUCKET or gallery.enabled)")
	}
	bucket, err := gallery.NewS3Bucket(gallery.S3Config{
		Endpoint:        cfg.Gallery.Endpoint,
		Region:          cfg.Gallery.Region,
		Bucket:          cfg.Gallery.Bucket,
		AccessKeyID:     cfg.Gallery.AccessKeyID,
		SecretAccessKey: cfg.Gallery.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return gallery.NewLister(bucket, cfg.Gallery.PublicBaseURL).ListImages(cmd.Context(), prefix, limit)
}
