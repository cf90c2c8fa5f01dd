package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// partitionFile is the layout of a standalone partition table file:
//
//	partitions:
//	  - name: CHESS
//	    subnet: 10.5.0.0/16
//	    addresses: [192.168.0.3, 192.168.0.18]
type partitionFile struct {
	Partitions []PartitionConfig `yaml:"partitions"`
}

// LoadPartitionFile reads a partition table from a standalone YAML file.
func LoadPartitionFile(path string) ([]PartitionConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("partition file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition file %s: %w", path, err)
	}

	var pf partitionFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse partition file %s: %w", path, err)
	}

	for i, p := range pf.Partitions {
		if p.Subnet == "" {
			return nil, fmt.Errorf("partition file %s: partitions[%d] (%s) has no subnet", path, i, p.Name)
		}
		if p.Name == "" {
			pf.Partitions[i].Name = fmt.Sprintf("partition-%d", i)
		}
	}

	return pf.Partitions, nil
}
