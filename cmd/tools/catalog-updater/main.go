// cmd/tools/catalog-updater/main.go
//
// Maintenance tool for the strategy catalog: add entries, validate the file
// against the engine defaults, and list what is registered.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/pkg/registry"
)

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	pathAdd := addCmd.String("path", "configs/strategies.json", "Path to catalog file")
	key := addCmd.String("key", "", "Entity-type key (e.g., site)")
	displayName := addCmd.String("displayName", "", "Display name (e.g., Site)")
	view := addCmd.String("view", "", "Lookup view name")
	idColumn := addCmd.String("idColumn", "", "Identifier column")
	labelColumn := addCmd.String("labelColumn", "", "Label column")
	descColumn := addCmd.String("descriptionColumn", "", "Optional description column")
	embColumn := addCmd.String("embeddingColumn", "", "Optional embedding column")

	pathValidate := validateCmd.String("path", "configs/strategies.json", "Path to catalog file")
	pathList := listCmd.String("path", "configs/strategies.json", "Path to catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *key == "" || *displayName == "" || *view == "" || *idColumn == "" || *labelColumn == "" {
			fmt.Println("Error: key, displayName, view, idColumn and labelColumn are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		def := registry.StrategyDef{
			Key:               *key,
			DisplayName:       *displayName,
			View:              *view,
			IDColumn:          *idColumn,
			LabelColumn:       *labelColumn,
			DescriptionColumn: *descColumn,
			EmbeddingColumn:   *embColumn,
			EmbeddingEnabled:  *embColumn != "",
		}
		if err := addStrategy(*pathAdd, def); err != nil {
			fmt.Printf("Error adding strategy: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Strategy %q added to %s\n", def.Key, *pathAdd)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateCatalog(*pathValidate); err != nil {
			fmt.Printf("Catalog invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog is valid.")

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listCatalog(*pathList); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	default:
		help()
		os.Exit(1)
	}
}

func addStrategy(path string, def registry.StrategyDef) error {
	catalog, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}

	for _, existing := range catalog.Strategies {
		if existing.Key == def.Key {
			return fmt.Errorf("key %q already present", def.Key)
		}
	}

	catalog.Strategies = append(catalog.Strategies, def)
	catalog.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// validateCatalog builds a registry from the file using stand-in engine
// defaults; every fail-fast path of the service startup runs here too.
func validateCatalog(path string) error {
	catalog, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}

	defaults := config.EngineConfig{
		KFuzzy:          20,
		KSemantic:       20,
		Threshold:       0.6,
		AutoMatchBound:  0.9,
		AutoMatchMargin: 0.1,
	}
	_, err = registry.Build(catalog, defaults)
	return err
}

func listCatalog(path string) error {
	catalog, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}

	fmt.Printf("Catalog %s (version %s, %d strategies)\n",
		filepath.Base(path), catalog.Version, len(catalog.Strategies))
	for _, def := range catalog.Strategies {
		channels := "lexical"
		if def.EmbeddingEnabled {
			channels = "lexical+semantic"
		}
		fmt.Printf("  %-12s %-20s view=%s channels=%s\n",
			def.Key, def.DisplayName, def.View, channels)
	}
	return nil
}

func help() {
	fmt.Println("Usage: catalog-updater <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  add       Add a strategy to the catalog")
	fmt.Println("  validate  Validate the catalog file")
	fmt.Println("  list      List catalog entries")
}
