// FilePath: cmd/keogram/main.go
package main

import (
	"flag"
	"log"
	"os"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/keogram"
)

func main() {
	var (
		inputDir = flag.String("input", "", "directory of captured frames")
		outFile  = flag.String("output", "", "output keogram file")
		angle    = flag.Float64("angle", 0, "rotation angle (overrides config when set)")
		scale    = flag.Int("scale", 0, "vertical scale percent (overrides config when set)")
	)
	flag.Parse()

	nuts.InitVersion()

	if *inputDir == "" || *outFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	kAngle := cfg.Keogram.Angle
	if *angle != 0 {
		kAngle = *angle
	}
	kScale := cfg.Keogram.HScaleFactor
	if *scale != 0 {
		kScale = *scale
	}

	gen := keogram.NewGenerator(kAngle, kScale)
	if err := gen.GenerateFromDir(*inputDir, *outFile); err != nil {
		nuts.L.Errorf("[Main] Keogram generation failed: %v", err)
		os.Exit(1)
	}

	nuts.L.Infof("[Main] Wrote %s", *outFile)
}
