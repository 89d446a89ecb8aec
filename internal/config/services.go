package config

import (
	"fmt"
	"os"

	"autoservice/internal/models"

	"github.com/go-playground/validator/v10"
	yamlv2 "gopkg.in/yaml.v2"
)

type servicesFile struct {
	Services []models.Service `yaml:"services"`
}

// LoadServices reads the seed catalog. A missing file yields an empty catalog.
func LoadServices(path string) ([]models.Service, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var file servicesFile
	if err := yamlv2.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}

	if err := ValidateServices(file.Services); err != nil {
		return nil, err
	}
	return file.Services, nil
}

func ValidateServices(services []models.Service) error {
	validate := validator.New()
	names := make(map[string]bool, len(services))
	for i := range services {
		svc := services[i]
		if err := validate.Struct(svc); err != nil {
			return fmt.Errorf("service '%s' is invalid: %w", svc.Name, err)
		}
		if names[svc.Name] {
			return fmt.Errorf("duplicate service name found: %s", svc.Name)
		}
		names[svc.Name] = true
	}
	return nil
}
