package main

import (
	"errors"
	"flag"
	"path/filepath"
	"strings"

	"github.com/born-ml/adain/internal/config"
	"github.com/born-ml/adain/internal/imaging"
	"github.com/born-ml/adain/internal/stylize"
)

func runStylize(args []string) error {
	fs := flag.NewFlagSet("stylize", flag.ExitOnError)
	contentPath := fs.String("content", "", "content image")
	stylePath := fs.String("style", "", "style image")
	weights := fs.String("weights", "", "extractor weight archive (.npz)")
	decoderPath := fs.String("decoder", "decoder.safetensors", "trained decoder checkpoint")
	out := fs.String("out", "stylized.png", "output image (.png or .jpg)")
	alpha := fs.Float64("alpha", 1, "style strength in [0, 1]")
	quality := fs.Int("quality", 95, "JPEG quality")
	logFormat := fs.String("log-format", "text", "log format: text or json")
	_ = fs.Parse(args)

	logger, err := newLogger(*logFormat, false)
	if err != nil {
		return err
	}
	if *contentPath == "" || *stylePath == "" || *weights == "" {
		return errors.New("-content, -style and -weights are required")
	}

	model, err := stylize.Load(*weights, config.Default().Encoder(), *decoderPath)
	if err != nil {
		return err
	}
	content, err := imaging.Decode(*contentPath)
	if err != nil {
		return err
	}
	style, err := imaging.Decode(*stylePath)
	if err != nil {
		return err
	}

	img, err := model.StylizeImage(content, style, float32(*alpha))
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".jpg", ".jpeg":
		err = imaging.SaveJPEG(*out, img, *quality)
	default:
		err = imaging.SavePNG(*out, img)
	}
	if err != nil {
		return err
	}
	logger.Info("stylized", "content", *contentPath, "style", *stylePath, "out", *out)
	return nil
}
