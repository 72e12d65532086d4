package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Brief is a locally configured campaign brief, used when the campaign
// service is not available or the caption is edited from a file.
type Brief struct {
	Name           string   `toml:"name"`
	Overview       string   `toml:"overview"`
	TargetAudience string   `toml:"target-audience"`
	BrandVoice     []string `toml:"brand-voice"`
	Guardrails     string   `toml:"guardrails"`
}

type Briefs struct {
	Campaigns []Brief `toml:"campaign"`
}

// Match finds a brief by campaign name, ignoring case and surrounding space.
func (b Briefs) Match(name string) *Brief {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range b.Campaigns {
		if strings.EqualFold(strings.TrimSpace(b.Campaigns[i].Name), name) {
			return &b.Campaigns[i]
		}
	}
	return nil
}

func LoadBriefs() (Briefs, error) {
	path, err := BriefsPath()
	if err != nil {
		return Briefs{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Briefs{}, nil
		}
		return Briefs{}, err
	}

	var cfg Briefs
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Briefs{}, err
	}
	return cfg, nil
}

func BriefsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "campaigns.toml"), nil
}
