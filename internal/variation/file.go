package variation

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadFile reads additional variation entries from a YAML file of the form:
//
//	variations:
//	  - key: ms real estate
//	    names: [MSRE, Master of Real Estate]
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "variation: read %s", path)
	}

	var wrapper struct {
		Variations []Entry `yaml:"variations"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "variation: parse file")
	}

	for i, e := range wrapper.Variations {
		if Normalize(e.Key) == "" {
			return nil, eris.Errorf("variation: entry %d has an empty key", i)
		}
	}
	return wrapper.Variations, nil
}
