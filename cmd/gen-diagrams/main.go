// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hassviz/hassviz/internal/diagram"
	"github.com/hassviz/hassviz/internal/graph"
)

func main() {
	// Branching automation: motion trigger, time condition, choose between
	// bright and dim scenes with a notify fallback.
	config := map[string]any{
		"id":    "motion_scene",
		"alias": "Motion Scene",
		"trigger": []any{
			map[string]any{"platform": "state", "entity_id": "binary_sensor.hall_motion", "to": "on"},
		},
		"condition": []any{
			map[string]any{"condition": "time", "after": "07:00:00", "before": "23:00:00"},
		},
		"action": []any{
			map[string]any{
				"choose": []any{
					map[string]any{
						"conditions": []any{map[string]any{"condition": "sun", "after": "sunset"}},
						"sequence":   []any{map[string]any{"scene": "scene.hall_dim"}},
					},
					map[string]any{
						"conditions": []any{map[string]any{"condition": "sun", "before": "sunset"}},
						"sequence":   []any{map[string]any{"scene": "scene.hall_bright"}},
					},
				},
				"default": []any{
					map[string]any{"service": "notify.mobile_app", "data": map[string]any{"message": "motion"}},
				},
			},
		},
	}

	g, err := graph.Parse(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	// Text outline
	text := diagram.RenderText(g)
	os.WriteFile(filepath.Join(outDir, "diagram-text.txt"), []byte(text), 0o644)
	fmt.Println("=== Text ===")
	fmt.Println(text)

	// Mermaid
	mermaid := diagram.RenderMermaid(g)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	// Image (PNG)
	ctx := context.Background()
	png, imgErr := diagram.RenderImage(ctx, g, diagram.FormatPNG)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
	} else {
		pngPath := filepath.Join(outDir, "diagram-sample.png")
		os.WriteFile(pngPath, png, 0o644)
		fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
	}
}
