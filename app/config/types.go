package config

// SourcesFile is the top-level shape of one YAML file in the sources
// directory. A file may declare any number of sources across kinds.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig declares one upstream source.
type SourceConfig struct {
	ID                    string `yaml:"id"`
	Name                  string `yaml:"name"`
	Kind                  string `yaml:"kind"`
	URL                   string `yaml:"url"`
	Category              string `yaml:"category"`
	Enabled               bool   `yaml:"enabled"`
	UpdateIntervalMinutes int    `yaml:"update_interval_minutes"`
}
