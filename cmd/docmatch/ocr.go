package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docmatch/internal/capture"
)

func newOCRCmd(opts *rootOptions) *cobra.Command {
	var (
		engine string
		region string
	)

	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Run OCR on an image and print the result",
		Long: `Run OCR on a PNG or JPEG image with the remote OCR service or the local
Tesseract engine, and print the recognized text and confidence.

Examples:
  docmatch ocr page.png
  docmatch ocr page.png --region 120,40,600,300
  docmatch ocr page.png --engine tesseract`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			roi, err := parseRegion(region)
			if err != nil {
				return err
			}
			recognizer, err := a.recognizer(engine)
			if err != nil {
				return err
			}
			img, err := capture.FileCapturer{Path: args[0], Region: roi}.Capture(ctx)
			if err != nil {
				return err
			}
			res, err := recognizer.Recognize(ctx, img)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("ocr failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "OCR engine: remote or tesseract (default from config)")
	cmd.Flags().StringVar(&region, "region", "", "crop to x,y,width,height before OCR")
	return cmd
}
