package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("output")
	switch f {
	case "json", "yaml":
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or yaml)", f)
	}
}

// print writes v in the selected output format. Values are encoded to JSON
// first so YAML output uses the same field names and order.
func (a *app) print(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	format, _ := outputFormat(cmd)
	if format == "json" {
		_, err = fmt.Fprintf(a.out, "%s\n", data)
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("convert output: %w", err)
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow style JSON input parses with.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// openInput opens path for reading; "-" is stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

// writeOutput writes through fn to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// optString returns the flag value only when it was set.
func optString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

// textFlag resolves a --name / --name-file pair. The file wins when both
// are set; "-" reads stdin.
func textFlag(cmd *cobra.Command, name string) (*string, error) {
	if file := optString(cmd, name+"-file"); file != nil {
		r, err := openInput(cmd, *file)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		s := string(data)
		return &s, nil
	}
	return optString(cmd, name), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
