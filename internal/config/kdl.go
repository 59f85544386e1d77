package config

import (
	"os"
	"path/filepath"

	kdl "github.com/sblinch/kdl-go"
)

// ProjectConfigFile is the optional per-directory override file.
const ProjectConfigFile = "clovis.kdl"

// Overrides holds optional values from clovis.kdl that take precedence
// over the JSON settings file.
type Overrides struct {
	Models          *OverrideModels `kdl:"models"`
	Personalization string          `kdl:"personalization"`
	TTS             *OverrideTTS    `kdl:"tts"`
}

// OverrideModels overrides the configured model names.
type OverrideModels struct {
	Router   string `kdl:"router"`
	Annotate string `kdl:"annotate"`
}

// OverrideTTS configures the optional text-to-speech endpoint.
type OverrideTTS struct {
	Endpoint string `kdl:"endpoint"`
	APIKey   string `kdl:"api-key"`
	Voice    string `kdl:"voice"`
}

// LoadOverrides reads clovis.kdl from dir. A missing file returns nil
// without error.
func LoadOverrides(dir string) (*Overrides, error) {
	path := filepath.Join(dir, ProjectConfigFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseOverrides(string(data))
}

// ParseOverrides parses clovis.kdl content.
func ParseOverrides(data string) (*Overrides, error) {
	var o Overrides
	if err := kdl.Unmarshal([]byte(data), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Apply merges overrides into settings. Empty fields leave settings
// untouched.
func (o *Overrides) Apply(s *Settings) {
	if o == nil {
		return
	}
	if o.Models != nil {
		if o.Models.Router != "" {
			s.RouterModel = o.Models.Router
		}
		if o.Models.Annotate != "" {
			s.AnnotateModel = o.Models.Annotate
		}
	}
	if o.Personalization != "" {
		s.Personalization = o.Personalization
	}
	if o.TTS != nil && o.TTS.Endpoint != "" {
		s.TTS = true
	}
}
