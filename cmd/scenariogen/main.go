package main

import (
	"flag"
	"log"

	"github.com/MewKitBit/Solaris/internal/config"
)

func main() {
	kind := flag.String("kind", "scenario", "template kind: scenario|stress")
	output := flag.String("output", "", "output path for scenario template")
	validate := flag.Bool("validate", false, "validate an existing scenario file")
	input := flag.String("input", "", "scenario path for validation (defaults to cmd path)")
	force := flag.Bool("force", false, "overwrite existing scenario file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = "cmd/solarisctl/scenario.toml"
		}
		if _, err := config.LoadScenario(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated scenario at %s", path)
		return
	}

	target := *output
	if target == "" {
		target = "cmd/solarisctl/scenario.toml"
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s template to %s", *kind, target)
}
