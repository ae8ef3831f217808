package assistant

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed help.yaml
var defaultHelpYAML []byte

// HelpScript is the spoken help text, grouped by topic.
type HelpScript struct {
	Intro    string `yaml:"intro"`
	Sections []struct {
		Name     string `yaml:"name"`
		Examples []struct {
			Say  string `yaml:"say"`
			Does string `yaml:"does"`
		} `yaml:"examples"`
	} `yaml:"sections"`
	Outro string `yaml:"outro"`
}

// DefaultHelp returns the built-in script.
func DefaultHelp() HelpScript {
	h, err := parseHelp(defaultHelpYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded help.yaml: %v", err))
	}
	return h
}

// LoadHelp reads a replacement script from path.
func LoadHelp(path string) (HelpScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return HelpScript{}, err
	}
	h, err := parseHelp(b)
	if err != nil {
		return HelpScript{}, fmt.Errorf("parse help script %s: %w", path, err)
	}
	return h, nil
}

func parseHelp(b []byte) (HelpScript, error) {
	var h HelpScript
	if err := yaml.Unmarshal(b, &h); err != nil {
		return HelpScript{}, err
	}
	if strings.TrimSpace(h.Intro) == "" && len(h.Sections) == 0 {
		return HelpScript{}, fmt.Errorf("help script is empty")
	}
	return h, nil
}

// Text renders the script the way it is spoken and logged.
func (h HelpScript) Text() string {
	var b strings.Builder
	b.WriteString(h.Intro)
	for _, s := range h.Sections {
		fmt.Fprintf(&b, "\n\n%s: ", s.Name)
		for _, ex := range s.Examples {
			fmt.Fprintf(&b, "\n• '%s' - %s", ex.Say, ex.Does)
		}
	}
	if h.Outro != "" {
		b.WriteString("\n\n")
		b.WriteString(h.Outro)
	}
	return b.String()
}
