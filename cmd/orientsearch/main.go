package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"orientsearch/pkg/config"
	"orientsearch/pkg/session"
	"orientsearch/pkg/solver"
	"orientsearch/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "orientsearch.yaml", "Level configuration file")
	preset := flag.String("preset", "", "Built-in level (easy, medium, hard); overrides -config")
	createConfig := flag.Bool("create-config", false, "Write a default configuration to -config and exit")
	numCores := flag.Int("cores", 0, "Number of CPU cores for the search (default: processing.numCores or all available)")
	psiStride := flag.Int("psi-stride", 1, "Evaluate every n-th in-plane angle")
	name := flag.String("name", "", "Display name for the submission")
	outDir := flag.String("out", "", "Output directory for images (overrides output.dir)")
	saveImages := flag.Bool("save-images", false, "Save target, candidate, heat-map and FRC images")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	var cfg *config.Config
	var err error
	if *preset != "" {
		cfg, err = config.Preset(*preset)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *saveImages {
		cfg.Output.SaveImages = true
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}

	fmt.Println("================================")
	fmt.Println("ORIENTATION SEARCH")
	fmt.Printf("Level %s: symmetry %s, %dpx at %.2f Å/px, SNR %.2f\n",
		cfg.Level.ID, cfg.Level.Symmetry, cfg.Level.ImageSize, cfg.Level.PixelSize, cfg.Level.SNR)
	fmt.Println("================================")

	s, err := session.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to start level: %v", err)
	}

	var viewer *visualization.Viewer
	if cfg.Output.SaveImages {
		viewer = visualization.NewViewer(cfg.Output.Dir, 4)
		if _, err := viewer.SaveProjection(s.Display(), cfg.Level.ImageSize, "target.png"); err != nil {
			log.Printf("Warning: Failed to save target image: %v", err)
		}
	}

	search := solver.New(solver.Params{
		NumCores:  cfg.Processing.NumCores,
		PsiStride: *psiStride,
		Record:    true,
	})
	search.SetProgressCallback(func(done, total int, msg string) {
		fmt.Printf("\r  %s: %d/%d", msg, done, total)
		if done == total {
			fmt.Println()
		}
	})

	startTime := time.Now()
	for {
		step := s.Step()
		fmt.Printf("\nStep %d/%d: %.2f° spacing, cutoff %.2f Nyquist, %d cells x %d psi steps\n",
			s.Machine().Index()+1, s.Machine().NumSteps(), step.SpacingDeg, step.CutoffNyquist,
			len(s.Cells()), step.PsiSteps())

		best := search.Search(s)
		if best.Evaluated == 0 {
			log.Fatalf("No active cells at step %d", s.Machine().Index())
		}
		if _, ok := s.SelectPoint(best.Candidate.Cell.CX, best.Candidate.Cell.CY, best.Candidate.Cell.IsTop); !ok {
			log.Fatalf("Failed to select best cell")
		}
		if err := s.SetPsiStep(best.Candidate.PsiStep); err != nil {
			log.Fatalf("Failed to set psi step: %v", err)
		}
		s.Frames().Frame()

		sel, _ := s.Selection()
		fmt.Printf("  best %s with NCC %.4f\n", s.Orientation(sel), s.LastScore())

		if viewer != nil {
			prefix := fmt.Sprintf("step%d", s.Machine().Index())
			if _, err := viewer.SaveHeatmaps(s.Cells(), s.Machine(), prefix, heatmapOptions(cfg)); err != nil {
				log.Printf("Warning: Failed to save heat-maps: %v", err)
			}
			if _, err := viewer.SaveProjection(s.Render(sel), cfg.Level.ImageSize, prefix+"_candidate.png"); err != nil {
				log.Printf("Warning: Failed to save candidate image: %v", err)
			}
		}

		if s.Machine().IsFinest() {
			break
		}
		if err := s.Subdivide(); err != nil {
			log.Fatalf("Subdivision failed: %v", err)
		}
	}
	searchTime := time.Since(startTime)

	res, err := s.Submit(*name)
	if err != nil {
		log.Fatalf("Submission failed: %v", err)
	}

	fmt.Printf("\nSearch completed in %.2f seconds\n", searchTime.Seconds())
	fmt.Printf("Player:   %s\n", res.Player)
	fmt.Printf("Target:   %s\n", res.Target)
	fmt.Printf("Angular error: %.2f°\n", res.AngularError*180/math.Pi)
	fmt.Printf("Resolution: %.2f Å (%d stars)\n", res.Score.ResolutionAngstrom, res.Score.Stars)
	fmt.Printf("Leaderboard entry: %s on %s\n", res.Submission.DisplayName, res.Submission.LevelID)

	if viewer != nil {
		path, err := viewer.SaveFRCPlot(res.Score, cfg.Level.ImageSize, "frc.png")
		if err != nil {
			log.Printf("Warning: Failed to save FRC plot: %v", err)
		} else {
			fmt.Printf("FRC plot saved to: %s\n", path)
		}
	}

	if res.Score.Stars == 0 {
		os.Exit(2)
	}
}

// heatmapOptions fades stale cells when the level's scores decay
func heatmapOptions(cfg *config.Config) visualization.HeatmapOptions {
	return visualization.HeatmapOptions{Decay: cfg.HalfLife() > 0}
}
