package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"panel-agent/internal/entity"
)

// JobFile is the on-disk shape of a single run descriptor.
type JobFile struct {
	Farm          string `yaml:"farm"`
	FarmName      string `yaml:"farm_name"`
	Manager       string `yaml:"manager"`
	SelectManager *bool  `yaml:"select_manager"`
	Date          string `yaml:"date"`
}

func LoadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var jf JobFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("decode job file %s: %w", path, err)
	}

	return &jf, nil
}

// Job converts the descriptor into a runnable job, attaching credentials from
// the environment when both are set.
func (jf *JobFile) Job(creds *CredentialsConfig) (entity.Job, error) {
	job := entity.Job{
		Farm:          jf.Farm,
		FarmName:      jf.FarmName,
		Manager:       jf.Manager,
		SelectManager: true,
	}

	if jf.SelectManager != nil {
		job.SelectManager = *jf.SelectManager
	}

	if jf.Date != "" {
		date, err := entity.ParseDate(jf.Date)
		if err != nil {
			return entity.Job{}, err
		}
		job.Date = &date
	}

	if creds != nil && creds.Username != "" && creds.Password != "" {
		job.Credentials = &entity.Credentials{
			Username: creds.Username,
			Password: creds.Password,
		}
	}

	if err := job.Validate(); err != nil {
		return entity.Job{}, err
	}

	return job, nil
}
