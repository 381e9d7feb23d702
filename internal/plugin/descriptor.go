package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mcprouter/internal/rerr"
)

// descriptor is the on-disk shape of a plugin descriptor file: it names
// which compile-time-registered constructor to instantiate. Descriptors are
// the file-driven half of discovery; the constructor itself is fixed at
// build time via Register.
type descriptor struct {
	Kind        Kind   `json:"kind"`
	Constructor string `json:"constructor"`
}

// loadDescriptors reads every *.json or *.yaml/*.yml file directly under dir
// as a descriptor. A directory that does not exist yields no descriptors
// (not an error) so an operator can list plugin dirs that simply aren't in
// use yet.
func loadDescriptors(dir string) ([]descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerr.Config("loadDescriptors", err, "could not read plugin directory %q", dir)
	}

	var out []descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, rerr.Config("loadDescriptors", err, "could not read plugin descriptor %q", path)
		}
		var d descriptor
		var unmarshalErr error
		if ext == ".json" {
			unmarshalErr = json.Unmarshal(data, &d)
		} else {
			unmarshalErr = yaml.Unmarshal(data, &d)
		}
		if unmarshalErr != nil {
			return nil, rerr.Config("loadDescriptors", unmarshalErr, "malformed plugin descriptor %q", path)
		}
		out = append(out, d)
	}
	return out, nil
}
