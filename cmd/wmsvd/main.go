// Command wmsvd embeds and extracts DWT-SVD watermarks from the command line.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	watermark "github.com/yyyoichi/watermark_svd"
	"github.com/yyyoichi/watermark_svd/internal/logger"
	"github.com/yyyoichi/watermark_svd/internal/metadata"
	"github.com/yyyoichi/watermark_svd/internal/quality"
)

const usage = `usage: wmsvd <command> [flags]

commands:
  embed    embed a watermark image into a host image
  extract  recover the watermark estimate from a marked PNG
  psnr     compare two images
  inspect  print the metadata carried by a marked PNG
`

var errUsage = errors.New("invalid usage")

func main() {
	log, err := logger.New("debug")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error("command failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "embed":
		return embed(args, stdout)
	case "extract":
		return extract(args, stdout)
	case "psnr":
		return psnr(args, stdout)
	case "inspect":
		return inspect(args, stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func embed(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	hostPath := fs.String("host", "", "host image (png, jpeg, gif or webp)")
	markPath := fs.String("mark", "", "watermark image")
	outPath := fs.String("out", "marked.png", "output PNG")
	wavelet := fs.String("wavelet", watermark.DefaultWavelet, "wavelet family")
	level := fs.Int("level", watermark.DefaultLevel, "decomposition levels")
	band := fs.String("band", watermark.DefaultBand.String(), "subband: LL, LH, HL or HH")
	alpha := fs.Float64("alpha", watermark.DefaultAlpha, "embedding strength")
	maxMeta := fs.Int("meta-max", 0, "metadata size limit in bytes (0 for the PNG limit)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *hostPath == "" || *markPath == "" {
		return fmt.Errorf("%w: -host and -mark are required", errUsage)
	}

	b, err := watermark.ParseBand(*band)
	if err != nil {
		return err
	}
	w, err := watermark.New(
		watermark.WithWavelet(*wavelet),
		watermark.WithLevel(*level),
		watermark.WithBand(b),
		watermark.WithAlpha(*alpha),
	)
	if err != nil {
		return err
	}
	host, err := readImage(*hostPath)
	if err != nil {
		return err
	}
	mark, err := readImage(*markPath)
	if err != nil {
		return err
	}
	res, err := w.Embed(host, mark)
	if err != nil {
		return err
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := watermark.WritePNG(f, res.Marked, res.Meta, watermark.WithMetaMaxSize(*maxMeta)); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	sub, _ := res.Meta.Ints(watermark.MetaHostSubbandShape)
	fmt.Fprintf(stdout, "wrote %s\n", *outPath)
	fmt.Fprintf(stdout, "PSNR: %.4f dB\n", res.PSNR)
	fmt.Fprintf(stdout, "subband: %dx%d\n", sub[0], sub[1])
	return nil
}

func extract(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	inPath := fs.String("in", "", "marked PNG")
	outPath := fs.String("out", "wm_extracted.png", "output PNG")
	restore := fs.Bool("restore", false, "resize the estimate to the embedded watermark's size")
	maxMeta := fs.Int("meta-max", 0, "metadata size limit in bytes (0 for the PNG limit)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *inPath == "" {
		return fmt.Errorf("%w: -in is required", errUsage)
	}

	in, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	marked, meta, err := watermark.ReadPNG(in, watermark.WithMetaMaxSize(*maxMeta))
	if err != nil {
		return err
	}
	est, err := watermark.Extract(marked, meta)
	if err != nil {
		return err
	}
	if *restore {
		if est, err = watermark.RestoreSize(est, meta); err != nil {
			return err
		}
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, est.Image()); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%dx%d)\n", *outPath, est.Cols, est.Rows)
	return nil
}

func psnr(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("psnr", flag.ContinueOnError)
	aPath := fs.String("a", "", "reference image")
	bPath := fs.String("b", "", "distorted image")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *aPath == "" || *bPath == "" {
		return fmt.Errorf("%w: -a and -b are required", errUsage)
	}
	a, err := readImage(*aPath)
	if err != nil {
		return err
	}
	b, err := readImage(*bPath)
	if err != nil {
		return err
	}
	p, err := quality.PSNR(a, b)
	if err != nil {
		return err
	}
	nc, err := quality.NC(a, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "PSNR: %.4f dB\n", p)
	fmt.Fprintf(stdout, "NC: %.6f\n", nc)
	return nil
}

func inspect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	inPath := fs.String("in", "", "marked PNG")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *inPath == "" {
		return fmt.Errorf("%w: -in is required", errUsage)
	}
	in, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	_, meta, err := watermark.ReadPNG(in)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonable(meta))
}

// jsonable replaces values encoding/json rejects: non-finite floats become
// strings.
func jsonable(v any) any {
	switch v := v.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Sprint(v)
		}
		return v
	case metadata.Bag:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonable(e)
		}
		return out
	case *metadata.Array:
		data := make([]any, len(v.Data))
		for i, e := range v.Data {
			data[i] = jsonable(e)
		}
		return map[string]any{"shape": v.Shape, "data": data}
	default:
		return v
	}
}

func readImage(path string) (*watermark.Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return watermark.ReadImage(f)
}
