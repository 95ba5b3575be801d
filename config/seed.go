package config

import (
	"fmt"
	"os"

	"itsm-knowledge-base/models"

	"gopkg.in/yaml.v3"
)

type categorySeedFile struct {
	Categories []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
}

// LoadCategorySeed reads a YAML file of the form
//
//	categories:
//	  - name: Network
//	    description: VPN, Wi-Fi and LAN issues
func LoadCategorySeed(path string) ([]models.Category, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category seed %s: %w", path, err)
	}
	var file categorySeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse category seed %s: %w", path, err)
	}
	out := make([]models.Category, 0, len(file.Categories))
	for _, c := range file.Categories {
		out = append(out, models.Category{Name: c.Name, Description: c.Description})
	}
	return out, nil
}
