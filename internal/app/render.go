package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// stdout is checked for terminal support before colouring output.
var stdout = os.Stdout

// out is the writer commands print to; tests swap it.
var out io.Writer = os.Stdout

// emit writes v as JSON or YAML when requested, otherwise calls human.
func emit(v any, human func(w io.Writer) error) error {
	switch {
	case flagJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case flagYAML:
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		return human(out)
	}
}

// toYAML renders v with its JSON field names and field order by decoding
// the JSON encoding as a YAML document and re-encoding it in block style.
func toYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("converting to yaml: %w", err)
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
