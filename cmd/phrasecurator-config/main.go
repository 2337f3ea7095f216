package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/config"
)

func main() {
	var (
		init_    = flag.Bool("init", false, "Write a default configuration file")
		show     = flag.Bool("show", false, "Show the effective configuration")
		validate = flag.Bool("validate", false, "Validate the configuration file")
		format   = flag.String("format", "yaml", "Output format for -show: yaml or json")
		force    = flag.Bool("force", false, "Overwrite an existing file with -init")
		path     = flag.String("config", "", "Configuration file path (default: ~/.phrasecurator/config.yaml)")
	)

	flag.Parse()

	configPath := *path
	if configPath == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get default config path: %v\n", err)
			os.Exit(1)
		}
		configPath = defaultPath
	}

	if *init_ {
		initConfig(configPath, *force)
	} else if *show {
		showConfig(configPath, *format)
	} else if *validate {
		validateConfig(configPath)
	} else {
		flag.Usage()
	}
}

func initConfig(path string, force bool) {
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(os.Stderr, "%s already exists (use -force to overwrite)\n", path)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := cfg.SaveToFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Default configuration saved to: %s\n", path)
}

// showConfig prints the configuration after environment overrides
func showConfig(path, format string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(cfg)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("# Configuration from %s\n", path)
	fmt.Println(string(data))
}

func validateConfig(path string) {
	// LoadConfig validates after applying overrides
	if _, err := config.LoadConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration at %s is valid\n", path)
}
